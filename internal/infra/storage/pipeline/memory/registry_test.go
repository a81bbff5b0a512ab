package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablecraft/pipeline-tracker/internal/domain/pipeline"
)

func TestProcessRegistry_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	reg := NewProcessRegistry()

	p := pipeline.NewProcess(uuid.New(), "Story: The Lighthouse", pipeline.KindStory)
	require.NoError(t, reg.Create(ctx, p))

	got, err := reg.Get(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, p.ID(), got.ID())
	assert.Equal(t, "Story: The Lighthouse", got.Name())
	assert.Equal(t, pipeline.StatusInitializing, got.Status())
}

func TestProcessRegistry_CreateDuplicateFails(t *testing.T) {
	ctx := context.Background()
	reg := NewProcessRegistry()

	p := pipeline.NewProcess(uuid.New(), "story", pipeline.KindStory)
	require.NoError(t, reg.Create(ctx, p))

	err := reg.Create(ctx, pipeline.NewProcess(p.ID(), "other", pipeline.KindStory))
	require.Error(t, err)

	var exists *pipeline.ProcessExistsError
	assert.ErrorAs(t, err, &exists)
}

func TestProcessRegistry_GetUnknownReturnsNotFound(t *testing.T) {
	reg := NewProcessRegistry()

	_, err := reg.Get(context.Background(), uuid.New())
	require.Error(t, err)

	var notFound *pipeline.ProcessNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestProcessRegistry_PatchUnknownIsNoOp(t *testing.T) {
	reg := NewProcessRegistry()

	progress := 0.5
	err := reg.Patch(context.Background(), uuid.New(), pipeline.Patch{Progress: &progress})
	assert.NoError(t, err, "patching a cleared process must be tolerated")
}

func TestProcessRegistry_AppendLogUnknownIsNoOp(t *testing.T) {
	reg := NewProcessRegistry()

	err := reg.AppendLog(context.Background(), uuid.New(), pipeline.NewLogEntry("late line", time.Now()))
	assert.NoError(t, err)
}

func TestProcessRegistry_PatchIsolation(t *testing.T) {
	ctx := context.Background()
	reg := NewProcessRegistry()

	x := pipeline.NewProcess(uuid.New(), "job-x", pipeline.KindStory)
	y := pipeline.NewProcess(uuid.New(), "job-y", pipeline.KindStoryboard)
	require.NoError(t, reg.Create(ctx, x))
	require.NoError(t, reg.Create(ctx, y))

	progress := 0.7
	require.NoError(t, reg.Patch(ctx, x.ID(), pipeline.Patch{Progress: &progress}))

	gotX, err := reg.Get(ctx, x.ID())
	require.NoError(t, err)
	gotY, err := reg.Get(ctx, y.ID())
	require.NoError(t, err)

	assert.Equal(t, 0.7, gotX.Progress())
	assert.Zero(t, gotY.Progress(), "patching job X must never alter job Y")
	assert.Equal(t, "job-y", gotY.Name())
}

func TestProcessRegistry_ListInCreationOrder(t *testing.T) {
	ctx := context.Background()
	reg := NewProcessRegistry()

	first := pipeline.NewProcess(uuid.New(), "first", pipeline.KindStory)
	second := pipeline.NewProcess(uuid.New(), "second", pipeline.KindDirector)
	third := pipeline.NewProcess(uuid.New(), "third", pipeline.KindAsset)
	for _, p := range []*pipeline.Process{first, second, third} {
		require.NoError(t, reg.Create(ctx, p))
	}

	list, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "first", list[0].Name())
	assert.Equal(t, "second", list[1].Name())
	assert.Equal(t, "third", list[2].Name())
}

func TestProcessRegistry_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	reg := NewProcessRegistry()

	p := pipeline.NewProcess(uuid.New(), "story", pipeline.KindStory)
	require.NoError(t, reg.Create(ctx, p))

	require.NoError(t, reg.Remove(ctx, p.ID()))
	require.NoError(t, reg.Remove(ctx, p.ID()))

	list, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestProcessRegistry_ReadsAreDeepCopies(t *testing.T) {
	ctx := context.Background()
	reg := NewProcessRegistry()

	p := pipeline.NewProcess(uuid.New(), "story", pipeline.KindStory)
	require.NoError(t, reg.Create(ctx, p))
	require.NoError(t, reg.AppendLog(ctx, p.ID(), pipeline.NewLogEntry("line one", time.Now())))

	got, err := reg.Get(ctx, p.ID())
	require.NoError(t, err)

	// Mutating the copy must not leak back into the registry.
	got.AppendLog(pipeline.NewLogEntry("tampered", time.Now()))

	fresh, err := reg.Get(ctx, p.ID())
	require.NoError(t, err)
	assert.Len(t, fresh.Logs(), 1)
}

func TestProcessRegistry_TerminalFinalityThroughPatch(t *testing.T) {
	ctx := context.Background()
	reg := NewProcessRegistry()

	p := pipeline.NewProcess(uuid.New(), "story", pipeline.KindStory)
	require.NoError(t, reg.Create(ctx, p))

	running := pipeline.StatusRunning
	complete := pipeline.StatusComplete
	require.NoError(t, reg.Patch(ctx, p.ID(), pipeline.Patch{Status: &running}))
	require.NoError(t, reg.Patch(ctx, p.ID(), pipeline.Patch{Status: &complete}))

	err := reg.Patch(ctx, p.ID(), pipeline.Patch{Status: &running})
	assert.Error(t, err, "no transition out of a terminal state")

	got, err := reg.Get(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusComplete, got.Status())
}
