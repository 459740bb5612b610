package pipeline

// Event names on the stream.
const (
	EventProgress = "progress"
	EventHTML     = "html"
	EventError    = "error"
	EventDone     = "done"
)

// Event is one unit of the generation stream.
type Event struct {
	Name string
	Data interface{}
}

// ProgressData reports a stage checkpoint.
type ProgressData struct {
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// HTMLData carries one fragment to append, in document order.
type HTMLData struct {
	Chunk string `json:"chunk"`
}

// ErrorData is the terminal payload of a failed run.
type ErrorData struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// DoneData is the terminal payload of a successful run.
type DoneData struct {
	Status string `json:"status"`
	PageID string `json:"page_id,omitempty"`
}

// EventSink receives stream events in order. A Send error means the client is
// gone; the run must stop producing.
type EventSink interface {
	Send(Event) error
}
