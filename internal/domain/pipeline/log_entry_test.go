package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifySeverity(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Severity
	}{
		{"plain progress line", "Generating storyboard frame 3 of 12", SeverityInfo},
		{"explicit error marker", "Error: model returned empty response", SeverityError},
		{"failed marker", "Frame 7 failed to render", SeverityError},
		{"failure beats success when both present", "Generation failed after stage complete", SeverityError},
		{"warning marker", "Warning: prompt truncated to fit context", SeverityWarning},
		{"skipped marker", "Reference sheet skipped, asset has no description", SeverityWarning},
		{"complete marker", "Storyboard generation: Complete", SeveritySuccess},
		{"success marker", "All assets generated successfully", SeveritySuccess},
		{"saved marker", "Saved 12 frames to project", SeveritySuccess},
		{"case insensitive", "ERROR IN PIPELINE", SeverityError},
		{"empty line", "", SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifySeverity(tt.text))
		})
	}
}

func TestNewLogEntry_DerivesSeverity(t *testing.T) {
	entry := NewLogEntry("d: Complete", time.Now())
	assert.Equal(t, SeveritySuccess, entry.Severity)
	assert.Equal(t, "d: Complete", entry.Text)
}
