// Package types defines core data structures shared across MediaMaster modules.
package types

import (
	"time"
)

// MediaKind classifies a file by its media category.
type MediaKind string

const (
	KindImage          MediaKind = "image"
	KindVideo          MediaKind = "video"
	KindPanoramicVideo MediaKind = "panoramic_video"
	KindAudio          MediaKind = "audio"
	// KindNone marks files outside every configured extension set.
	// They are excluded from all downstream stages.
	KindNone MediaKind = ""
)

// MediaRecord is the per-file classification result. It is computed fresh
// for every pipeline invocation and never persisted.
type MediaRecord struct {
	// Path is the absolute path to the source file.
	Path string
	// Kind is the classified media kind.
	Kind MediaKind
	// ShootDate is the inferred capture time. Nil when no metadata was
	// found and the mtime fallback is disabled.
	ShootDate *time.Time
	// Device is the inferred device label, defaulting to the configured
	// unknown-device sentinel.
	Device string
	// DateStr is used verbatim as a directory-name component.
	DateStr string
}

// Action describes what the organize pipeline did with a file.
type Action string

const (
	ActionMove             Action = "move"
	ActionRelated          Action = "related"
	ActionSkip             Action = "skip"
	ActionAlreadyProcessed Action = "already_processed"
	ActionFail             Action = "fail"
	ActionFailRelated      Action = "fail_related"
)

// ReportEntry is one line of the organize audit trail. Detail holds the
// destination path for moves and the reason for skips/failures.
type ReportEntry struct {
	Action Action `json:"action"`
	Source string `json:"source"`
	Detail string `json:"detail"`
}

// OrganizeReport is the structured outcome of one organize run.
type OrganizeReport struct {
	Mode       string        `json:"mode"` // "organize" or "scan_only"
	Source     string        `json:"source"`
	Output     string        `json:"output"`
	TotalMedia int           `json:"total_media"`
	ToProcess  int           `json:"to_process"`
	Entries    []ReportEntry `json:"entries"`
}

// CopyPair records a verified copy.
type CopyPair struct {
	Source string `json:"source"`
	Dest   string `json:"dest"`
}

// CopyFailure records a skipped or failed copy with its reason.
type CopyFailure struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// CopyReport is the audit trail of one super-copy run.
type CopyReport struct {
	MediaOK   []CopyPair    `json:"media_ok"`
	MediaSkip []CopyFailure `json:"media_skip"`
	MediaFail []CopyFailure `json:"media_fail"`
	OtherOK   []string      `json:"other_ok"`
	OtherFail []CopyFailure `json:"other_fail"`
}

// CopyStats summarizes a super-copy run.
type CopyStats struct {
	OK     int         `json:"ok"`
	Fail   int         `json:"fail"`
	Skip   int         `json:"skip"`
	Report *CopyReport `json:"report"`
}

// DuplicateStrategy defines how destination collisions are handled.
type DuplicateStrategy string

const (
	DuplicateSkip      DuplicateStrategy = "skip"
	DuplicateRename    DuplicateStrategy = "rename"
	DuplicateOverwrite DuplicateStrategy = "overwrite"
)

// ProgressPhase identifies a phase transition of the copy protocol.
type ProgressPhase string

const (
	PhaseHashSource ProgressPhase = "hash_src"
	PhaseCopy       ProgressPhase = "copy"
	PhaseHashDest   ProgressPhase = "hash_dest"
	PhaseVerifyOK   ProgressPhase = "verify_ok"
	PhaseVerifyFail ProgressPhase = "verify_fail"
	PhaseProgress   ProgressPhase = "progress"
)

// ProgressFunc receives phase transitions with a monotonically increasing
// completed-operation count against a precomputed total.
type ProgressFunc func(phase ProgressPhase, message string, current, total int)
