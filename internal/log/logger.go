package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dotdot-dev/mediamaster/pkg/types"
)

// Logger writes run events to a log file and summaries to the console.
// Probe fallbacks and other recoverable noise go through Debug and only
// reach the file when debug mode is on.
type Logger struct {
	mu      sync.Mutex
	console io.Writer
	file    *os.File
	logJSON bool
	debug   bool
}

func New(logFilePath string, logJSON, debug bool) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	return &Logger{
		console: os.Stdout,
		file:    file,
		logJSON: logJSON,
		debug:   debug,
	}, nil
}

// Discard returns a logger that writes nowhere, for tests.
func Discard() *Logger {
	return &Logger{console: io.Discard}
}

func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.write("INFO", fmt.Sprintf(format, args...), "")
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.write("WARN", fmt.Sprintf(format, args...), "")
}

func (l *Logger) Error(msg string, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	l.write("ERROR", msg, detail)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.write("DEBUG", fmt.Sprintf(format, args...), "")
}

func (l *Logger) write(level, msg, errDetail string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
		Error:     errDetail,
	}

	if l.logJSON {
		data, _ := json.Marshal(entry)
		l.file.Write(data)
		l.file.Write([]byte("\n"))
		return
	}

	line := fmt.Sprintf("[%s] %s %s\n",
		entry.Timestamp.Format("2006-01-02 15:04:05"),
		entry.Level,
		entry.Message,
	)
	if entry.Error != "" {
		line = fmt.Sprintf("[%s] %s %s - Error: %s\n",
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			entry.Level,
			entry.Message,
			entry.Error,
		)
	}
	l.file.WriteString(line)
}

// OrganizeSummary prints the organize run outcome to the console.
func (l *Logger) OrganizeSummary(report *types.OrganizeReport) {
	counts := map[types.Action]int{}
	for _, e := range report.Entries {
		counts[e.Action]++
	}
	fmt.Fprintln(l.console, "\n=== MediaMaster 整理结果 ===")
	fmt.Fprintf(l.console, "Source:            %s\n", report.Source)
	fmt.Fprintf(l.console, "Output:            %s\n", report.Output)
	fmt.Fprintf(l.console, "Media found:       %d\n", report.TotalMedia)
	fmt.Fprintf(l.console, "Primaries:         %d\n", report.ToProcess)
	fmt.Fprintf(l.console, "Moved:             %d\n", counts[types.ActionMove])
	fmt.Fprintf(l.console, "Related:           %d\n", counts[types.ActionRelated])
	fmt.Fprintf(l.console, "Skipped:           %d\n", counts[types.ActionSkip])
	fmt.Fprintf(l.console, "Already processed: %d\n", counts[types.ActionAlreadyProcessed])
	fmt.Fprintf(l.console, "Failed:            %d\n", counts[types.ActionFail]+counts[types.ActionFailRelated])
	fmt.Fprintln(l.console, "============================")
}

// CopySummary prints the super-copy outcome to the console.
func (l *Logger) CopySummary(stats *types.CopyStats) {
	fmt.Fprintln(l.console, "\n=== MediaMaster 超级拷贝结果 ===")
	fmt.Fprintf(l.console, "OK:      %d\n", stats.OK)
	fmt.Fprintf(l.console, "Failed:  %d\n", stats.Fail)
	fmt.Fprintf(l.console, "Skipped: %d\n", stats.Skip)
	if stats.Report != nil {
		fmt.Fprintf(l.console, "Media verified: %d, other files: %d\n",
			len(stats.Report.MediaOK), len(stats.Report.OtherOK))
	}
	fmt.Fprintln(l.console, "================================")
}
