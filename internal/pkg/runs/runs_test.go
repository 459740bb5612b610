package runs

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisc "github.com/decidepage/core/internal/pkg/redis"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRegistry(redisc.NewFromClient(rdb))
}

func TestBeginAndProgress(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	run, err := reg.Begin(ctx, KindGenerate, "document", "doc-1")
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, RunRunning, run.Status)

	require.NoError(t, reg.Progress(ctx, run.ID, "html_rendering", 72))

	got, err := reg.GetByID(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "html_rendering", got.Stage)
	assert.Equal(t, 72, got.Percent)
}

func TestBeginRejectsSecondActiveRun(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	first, err := reg.Begin(ctx, KindGenerate, "meeting", "m-1")
	require.NoError(t, err)

	_, err = reg.Begin(ctx, KindRender, "meeting", "m-1")
	require.Error(t, err)

	// A different owner is unaffected.
	_, err = reg.Begin(ctx, KindGenerate, "meeting", "m-2")
	require.NoError(t, err)

	// Finishing releases the slot.
	require.NoError(t, reg.Finish(ctx, first.ID, RunCompleted, ""))
	_, err = reg.Begin(ctx, KindRender, "meeting", "m-1")
	require.NoError(t, err)
}

func TestFinishSetsTerminalState(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	run, err := reg.Begin(ctx, KindRender, "document", "doc-9")
	require.NoError(t, err)

	require.NoError(t, reg.Finish(ctx, run.ID, RunFailed, "model unreachable"))

	got, err := reg.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, got.Status)
	assert.Equal(t, "model unreachable", got.Error)
}

func TestListFiltersByStatus(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	a, _ := reg.Begin(ctx, KindGenerate, "document", "a")
	b, _ := reg.Begin(ctx, KindGenerate, "document", "b")
	require.NoError(t, reg.Finish(ctx, a.ID, RunCompleted, ""))
	_ = b

	done := RunCompleted
	got, total, err := reg.List(ctx, 1, 10, &done)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
}

func TestPruneFinishedKeepsRunning(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	a, _ := reg.Begin(ctx, KindGenerate, "document", "a")
	b, _ := reg.Begin(ctx, KindGenerate, "document", "b")
	require.NoError(t, reg.Finish(ctx, a.ID, RunCancelled, ""))

	require.NoError(t, reg.PruneFinished(ctx, 0))

	gone, err := reg.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := reg.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
}
