package pipeline

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/decidepage/core/internal/pkg/response"
	"github.com/decidepage/core/internal/pkg/runs"
)

// Serve binds a run to the HTTP request: registers it in the run registry,
// streams events over SSE, and records the terminal status. A second run for
// an owner that already has one active is rejected with 409 before any event
// is written.
func Serve(c *gin.Context, registry *runs.Registry, kind runs.Kind, req Request, run func(ctx context.Context, sink EventSink) error) {
	var runID string
	if registry != nil {
		rec, err := registry.Begin(c.Request.Context(), kind, string(req.OwnerType), req.OwnerID)
		if err != nil {
			response.Conflict(c, "a run is already active for this owner")
			return
		}
		runID = rec.ID
	}

	var sink EventSink = NewSSESink(c)
	if registry != nil {
		sink = NewRecordingSink(sink, registry, runID)
	}

	err := run(c.Request.Context(), sink)

	if registry != nil {
		status := runs.RunCompleted
		msg := ""
		if err != nil {
			msg = err.Error()
			if errors.Is(err, context.Canceled) || AsFailure(err).Kind == KindCancelled {
				status = runs.RunCancelled
			} else {
				status = runs.RunFailed
			}
		}
		// Background context: the request context is often already gone here.
		_ = registry.Finish(context.Background(), runID, status, msg)
	}
}
