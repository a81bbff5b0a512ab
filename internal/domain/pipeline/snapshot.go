package pipeline

// StatusSnapshot is the full current state of a pipeline as reported by one
// backend status call. It is a snapshot, not a delta: the log slice always
// contains every line emitted so far, and scalar fields describe the moment
// of the poll. Optional fields are pointers (or nil slices) so that a field
// the backend omitted in a given tick can be told apart from a zero value
// and left out of the resulting patch.
type StatusSnapshot struct {
	Status   ProcessStatus
	Progress *float64
	Logs     []string

	Stages         []Stage
	CurrentStage   *string
	CurrentItem    *int
	TotalItems     *int
	CompletedItems *int

	// Error carries the failure detail when Status is error.
	Error *string
}
