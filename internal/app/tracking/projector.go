package tracking

import "github.com/fablecraft/pipeline-tracker/internal/domain/pipeline"

// ProjectSnapshot maps a status snapshot's display fields onto a registry
// patch. Present fields are copied verbatim (last snapshot wins, including
// the stage list, which is replaced wholesale); fields the snapshot omitted
// stay absent from the patch so the registry preserves the previous values
// instead of zeroing them.
func ProjectSnapshot(snap pipeline.StatusSnapshot) pipeline.Patch {
	patch := pipeline.Patch{
		Progress:       snap.Progress,
		CurrentStage:   snap.CurrentStage,
		CurrentItem:    snap.CurrentItem,
		TotalItems:     snap.TotalItems,
		CompletedItems: snap.CompletedItems,
		Error:          snap.Error,
	}

	// An unrecognized status carries no information, and a backend still
	// reporting initializing must not drag a locally running record
	// backwards; both are omitted so the rest of the patch still applies.
	if snap.Status != "" && snap.Status != pipeline.StatusInitializing {
		status := snap.Status
		patch.Status = &status
	}
	if snap.Stages != nil {
		patch.Stages = pipeline.CopyStages(snap.Stages)
	}

	return patch
}
