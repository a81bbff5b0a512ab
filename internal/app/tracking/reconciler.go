package tracking

import (
	"github.com/fablecraft/pipeline-tracker/internal/domain/pipeline"
	"github.com/fablecraft/pipeline-tracker/pkg/common/timeutil"
)

// LogReconciler turns the full log sequence a status snapshot carries into
// only the entries not yet appended locally. One reconciler exists per
// poller, so the consumed counter is private per-process state and never
// part of the public record.
type LogReconciler struct {
	consumed     int
	timeProvider timeutil.Provider
}

// NewLogReconciler creates a reconciler with nothing consumed yet.
func NewLogReconciler(timeProvider timeutil.Provider) *LogReconciler {
	return &LogReconciler{timeProvider: timeProvider}
}

// Reconcile returns the suffix of lines beyond what previous snapshots
// already delivered, classified by severity, and advances the consumed
// counter. A snapshot whose log sequence is no longer than the consumed
// count yields nothing: a shorter sequence is treated as "nothing new",
// never as a truncation to apply locally. The local log view is never
// shortened or reordered.
func (r *LogReconciler) Reconcile(lines []string) []pipeline.LogEntry {
	if len(lines) <= r.consumed {
		return nil
	}

	now := r.timeProvider.Now()
	entries := make([]pipeline.LogEntry, 0, len(lines)-r.consumed)
	for _, line := range lines[r.consumed:] {
		entries = append(entries, pipeline.NewLogEntry(line, now))
	}

	r.consumed = len(lines)
	return entries
}

// Consumed reports how many remote log lines have been merged so far.
func (r *LogReconciler) Consumed() int { return r.consumed }
