package pipeline

import (
	"context"

	"github.com/decidepage/core/internal/pkg/runs"
)

// RecordingSink mirrors progress events into the run registry while
// forwarding everything to the wrapped sink. Registry write failures never
// interrupt the stream.
type RecordingSink struct {
	inner    EventSink
	registry *runs.Registry
	runID    string
}

func NewRecordingSink(inner EventSink, registry *runs.Registry, runID string) *RecordingSink {
	return &RecordingSink{inner: inner, registry: registry, runID: runID}
}

func (s *RecordingSink) Send(ev Event) error {
	if p, ok := ev.Data.(ProgressData); ok && s.registry != nil {
		// Background context: progress must still land when the request
		// context is already cancelled.
		_ = s.registry.Progress(context.Background(), s.runID, p.Stage, p.Percent)
	}
	return s.inner.Send(ev)
}
