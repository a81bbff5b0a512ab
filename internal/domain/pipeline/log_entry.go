package pipeline

import (
	"strings"
	"time"
)

// Severity classifies a log line for display purposes. The classification is
// best-effort and cosmetic; it is never used as a correctness signal.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

func (s Severity) String() string { return string(s) }

// LogEntry is one line of a process's append-only log view.
type LogEntry struct {
	Text       string
	Severity   Severity
	ObservedAt time.Time
}

// NewLogEntry builds a LogEntry with a severity derived from the line's
// content.
func NewLogEntry(text string, observedAt time.Time) LogEntry {
	return LogEntry{
		Text:       text,
		Severity:   ClassifySeverity(text),
		ObservedAt: observedAt,
	}
}

// Marker sets checked, in order, when classifying a log line. Failure markers
// win over warnings, warnings over success.
var (
	errorMarkers   = []string{"error", "failed", "failure", "exception"}
	warningMarkers = []string{"warning", "warn", "skipped", "retrying"}
	successMarkers = []string{"complete", "completed", "success", "finished", "done", "generated", "saved"}
)

// ClassifySeverity derives a display severity from the content of a log
// line.
func ClassifySeverity(text string) Severity {
	lower := strings.ToLower(text)

	for _, m := range errorMarkers {
		if strings.Contains(lower, m) {
			return SeverityError
		}
	}
	for _, m := range warningMarkers {
		if strings.Contains(lower, m) {
			return SeverityWarning
		}
	}
	for _, m := range successMarkers {
		if strings.Contains(lower, m) {
			return SeveritySuccess
		}
	}

	return SeverityInfo
}
