package pipeline

// StageStatus represents the reported state of a single named stage within a
// pipeline.
type StageStatus string

const (
	StagePending  StageStatus = "pending"
	StageRunning  StageStatus = "running"
	StageComplete StageStatus = "complete"
	StageError    StageStatus = "error"
)

func (s StageStatus) String() string { return string(s) }

// Stage is one entry in a pipeline's reported stage list. Stage identity
// across polls is positional, not keyed, so the whole list is replaced on
// every snapshot rather than merged element by element.
type Stage struct {
	Name    string
	Status  StageStatus
	Message string
}

// CopyStages returns an independent copy of a stage slice so registry reads
// can never alias registry-owned state.
func CopyStages(stages []Stage) []Stage {
	if stages == nil {
		return nil
	}
	out := make([]Stage, len(stages))
	copy(out, stages)
	return out
}
