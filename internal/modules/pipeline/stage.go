package pipeline

// Stage is one state of the generation state machine. The wire names match
// what clients display in progress events.
type Stage string

const (
	// StageInitial is the implicit state before the first transition.
	StageInitial Stage = ""

	StageParsing             Stage = "Parsing"
	StageDecisionStructuring Stage = "Decision Structuring"
	StageHTMLRendering       Stage = "HTML Rendering"
	StageFinalizing          Stage = "Finalizing"

	StageDone   Stage = "Done"
	StageFailed Stage = "Failed"
)

// transitions is the closed set of legal forward moves. Parsing may jump
// straight to HTML Rendering when cached intelligence makes extraction
// unnecessary; re-render runs enter at HTML Rendering directly.
var transitions = map[Stage][]Stage{
	StageInitial:             {StageParsing, StageHTMLRendering},
	StageParsing:             {StageDecisionStructuring, StageHTMLRendering},
	StageDecisionStructuring: {StageHTMLRendering},
	StageHTMLRendering:       {StageFinalizing},
	StageFinalizing:          {StageDone},
}

// CanTransition reports whether moving from s to next is legal. Any
// non-terminal stage may move to Failed.
func (s Stage) CanTransition(next Stage) bool {
	if s.Terminal() {
		return false
	}
	if next == StageFailed {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the stage ends a run.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// machine tracks the current stage and enforces legal transitions plus
// monotonically non-decreasing percent within one run.
type machine struct {
	sink    EventSink
	stage   Stage
	percent int
}

func newMachine(sink EventSink) *machine {
	return &machine{sink: sink, stage: StageInitial}
}

// to moves the machine to the next stage and emits a progress event.
func (m *machine) to(next Stage, percent int, message string) error {
	if !m.stage.CanTransition(next) {
		return &Failure{Kind: KindInternal, Err: errIllegalTransition(m.stage, next)}
	}
	m.stage = next
	return m.progress(percent, message)
}

// progress emits a progress event at the current stage. Percent never goes
// backward within a run.
func (m *machine) progress(percent int, message string) error {
	if percent < m.percent {
		percent = m.percent
	}
	if percent > 100 {
		percent = 100
	}
	m.percent = percent
	return m.sink.Send(Event{
		Name: EventProgress,
		Data: ProgressData{
			Stage:   string(m.stage),
			Percent: m.percent,
			Message: message,
		},
	})
}

// fail moves the machine to Failed without emitting a progress event; the
// caller emits the terminal error event.
func (m *machine) fail() {
	if !m.stage.Terminal() {
		m.stage = StageFailed
	}
}
