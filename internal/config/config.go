package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dotdot-dev/mediamaster/pkg/types"
	"gopkg.in/yaml.v3"
)

// FolderStructure controls the date/kind/device destination hierarchy.
type FolderStructure struct {
	// DateFormat is a Go time layout used for the date directory name.
	DateFormat         string `yaml:"date_format" json:"date_format"`
	ImageSubfolder     string `yaml:"image_subfolder" json:"image_subfolder"`
	VideoSubfolder     string `yaml:"video_subfolder" json:"video_subfolder"`
	AudioSubfolder     string `yaml:"audio_subfolder" json:"audio_subfolder"`
	PanoramicSubfolder string `yaml:"panoramic_subfolder" json:"panoramic_subfolder"`
	DeviceSubfolder    bool   `yaml:"device_subfolder" json:"device_subfolder"`
}

// AutoCopy configures the unattended daemon loop.
type AutoCopy struct {
	Enabled         bool     `yaml:"enabled" json:"enabled"`
	WatchPaths      []string `yaml:"watch_paths" json:"watch_paths"`
	TargetPath      string   `yaml:"target_path" json:"target_path"`
	PollIntervalSec int      `yaml:"poll_interval_sec" json:"poll_interval_sec"`
}

type Config struct {
	SourcePath      string `yaml:"source_path" json:"source_path"`
	OutputPath      string `yaml:"output_path" json:"output_path"`
	SuperCopySource string `yaml:"super_copy_source" json:"super_copy_source"`
	SuperCopyTarget string `yaml:"super_copy_target" json:"super_copy_target"`

	ImageExtensions        []string `yaml:"image_extensions" json:"image_extensions"`
	VideoExtensions        []string `yaml:"video_extensions" json:"video_extensions"`
	AudioExtensions        []string `yaml:"audio_extensions" json:"audio_extensions"`
	LeaveInPlaceExtensions []string `yaml:"leave_in_place_extensions" json:"leave_in_place_extensions"`

	RelatedSameStem   bool   `yaml:"related_same_stem" json:"related_same_stem"`
	DateFallback      string `yaml:"date_fallback" json:"date_fallback"` // "mtime" or "none"
	DeviceUnknownName string `yaml:"device_unknown_name" json:"device_unknown_name"`

	FolderStructure FolderStructure `yaml:"folder_structure" json:"folder_structure"`

	MoveFiles          bool                    `yaml:"move_files" json:"move_files"`
	DuplicateStrategy  types.DuplicateStrategy `yaml:"duplicate_strategy" json:"duplicate_strategy"`
	DeleteEmptyFolders bool                    `yaml:"delete_empty_folders" json:"delete_empty_folders"`
	UseExiftool        bool                    `yaml:"use_exiftool" json:"use_exiftool"`
	UnifiedNaming      bool                    `yaml:"unified_naming" json:"unified_naming"`

	AutoCopy AutoCopy `yaml:"auto_copy" json:"auto_copy"`

	StateFile    string `yaml:"state_file" json:"state_file"`
	DeviceDBFile string `yaml:"device_db_file" json:"device_db_file"`
	LogFile      string `yaml:"log_file" json:"log_file"`
	LogJSON      bool   `yaml:"log_json" json:"log_json"`
	Debug        bool   `yaml:"debug" json:"debug"`
}

func DefaultConfig() *Config {
	baseDir := BaseDir()

	return &Config{
		ImageExtensions: []string{
			".jpg", ".jpeg", ".png", ".heic", ".heif", ".gif", ".bmp", ".webp",
			".raw", ".cr2", ".nef", ".arw", ".dng",
		},
		VideoExtensions: []string{
			".mp4", ".mov", ".mkv", ".avi", ".wmv", ".webm", ".m4v", ".3gp",
			".mpg", ".mpeg", ".mts", ".360", ".insv", ".lrf", ".osv",
		},
		AudioExtensions: []string{
			".mp3", ".m4a", ".wav", ".aac", ".flac", ".ogg", ".wma",
		},
		LeaveInPlaceExtensions: []string{".op", ".ed", ".lrprev", ".lock"},
		RelatedSameStem:        true,
		DateFallback:           "mtime",
		DeviceUnknownName:      "未知设备",
		FolderStructure: FolderStructure{
			DateFormat:         "2006-01-02",
			ImageSubfolder:     "图片",
			VideoSubfolder:     "视频",
			AudioSubfolder:     "音频",
			PanoramicSubfolder: "全景视频",
			DeviceSubfolder:    true,
		},
		MoveFiles:         true,
		DuplicateStrategy: types.DuplicateRename,
		UseExiftool:       true,
		UnifiedNaming:     true,
		AutoCopy: AutoCopy{
			WatchPaths:      []string{"/media"},
			PollIntervalSec: 60,
		},
		StateFile:    filepath.Join(baseDir, "processed_files.json"),
		DeviceDBFile: filepath.Join(baseDir, "device_suffixes.json"),
		LogFile:      filepath.Join(baseDir, "mediamaster.log"),
	}
}

// BaseDir is the directory holding the config document, state file and
// device database. Overridable via CONFIG_DIR for container deployments.
func BaseDir() string {
	if env := strings.TrimSpace(os.Getenv("CONFIG_DIR")); env != "" {
		if info, err := os.Stat(env); err == nil && info.IsDir() {
			return env
		}
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".mediamaster")
}

// LoadFromFile merges a partial YAML document over the defaults. Missing
// keys keep their default values; unknown keys are ignored.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveToFile writes the full config document as YAML.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.DateFallback != "mtime" && c.DateFallback != "none" {
		return &ValidationError{Field: "date_fallback", Message: "must be \"mtime\" or \"none\""}
	}
	switch c.DuplicateStrategy {
	case types.DuplicateSkip, types.DuplicateRename, types.DuplicateOverwrite:
	default:
		return &ValidationError{Field: "duplicate_strategy", Message: "must be skip, rename or overwrite"}
	}
	if c.DeviceUnknownName == "" {
		c.DeviceUnknownName = "未知设备"
	}
	if c.FolderStructure.DateFormat == "" {
		c.FolderStructure.DateFormat = "2006-01-02"
	}
	if c.AutoCopy.PollIntervalSec < 15 {
		c.AutoCopy.PollIntervalSec = 15
	}

	baseDir := BaseDir()
	if c.StateFile == "" {
		c.StateFile = filepath.Join(baseDir, "processed_files.json")
	}
	if c.DeviceDBFile == "" {
		c.DeviceDBFile = filepath.Join(baseDir, "device_suffixes.json")
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(baseDir, "mediamaster.log")
	}

	return nil
}

// NormalizeExtensions lowercases a list and guarantees a leading dot,
// so ".JPG", "jpg" and ".jpg" all land on the same key.
func NormalizeExtensions(list []string) map[string]bool {
	m := make(map[string]bool, len(list))
	for _, ext := range list {
		e := strings.ToLower(strings.TrimSpace(ext))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		m[e] = true
	}
	return m
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
