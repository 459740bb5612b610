package pipeline

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SSESink writes events to a gin response as server-sent events and flushes
// after each one so clients see progress immediately.
type SSESink struct {
	c       *gin.Context
	flusher http.Flusher
}

// NewSSESink prepares the response for streaming and returns the sink.
func NewSSESink(c *gin.Context) *SSESink {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	return &SSESink{c: c, flusher: flusher}
}

// Send writes one event frame. A write error means the client disconnected.
func (s *SSESink) Send(ev Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.c.Writer, "event: %s\ndata: %s\n\n", ev.Name, data); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
