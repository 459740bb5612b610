package pipeline

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/decidepage/core/internal/models"
	"github.com/decidepage/core/internal/modules/intelligence"
	"github.com/decidepage/core/internal/modules/render"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

type memSink struct {
	events []Event
	failAt int // 1-based send index after which every Send fails
	err    error
}

func (s *memSink) Send(ev Event) error {
	if s.failAt > 0 && len(s.events)+1 >= s.failAt {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

// sequence flattens the event stream into comparable tokens.
func (s *memSink) sequence() []string {
	var seq []string
	for _, ev := range s.events {
		switch d := ev.Data.(type) {
		case ProgressData:
			seq = append(seq, "progress:"+d.Stage)
		case HTMLData:
			seq = append(seq, "html")
		case ErrorData:
			seq = append(seq, "error:"+d.Kind)
		case DoneData:
			seq = append(seq, "done")
		}
	}
	return seq
}

func (s *memSink) percents() []int {
	var out []int
	for _, ev := range s.events {
		if d, ok := ev.Data.(ProgressData); ok {
			out = append(out, d.Percent)
		}
	}
	return out
}

func requireMonotonic(t *testing.T, percents []int) {
	t.Helper()
	for i := 1; i < len(percents); i++ {
		require.GreaterOrEqual(t, percents[i], percents[i-1], "percent regressed at index %d: %v", i, percents)
	}
}

type fakeStore struct {
	rec      *models.IntelligenceRecordModel
	getErr   error
	putErr   error
	putCalls int
}

func (f *fakeStore) Get(context.Context, models.OwnerType, string) (*models.IntelligenceRecordModel, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.rec == nil {
		return nil, intelligence.ErrNotFound
	}
	return f.rec, nil
}

func (f *fakeStore) Put(_ context.Context, ownerType models.OwnerType, ownerID string, payload intelligence.Payload, expect int) (*models.IntelligenceRecordModel, error) {
	f.putCalls++
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.rec = &models.IntelligenceRecordModel{
		OwnerID:   ownerID,
		OwnerType: ownerType,
		Current:   payload,
		Version:   expect + 1,
	}
	return f.rec, nil
}

type fakeExtractor struct {
	payload intelligence.Payload
	err     error
	calls   int
}

func (f *fakeExtractor) Extract(context.Context, models.OwnerType, string) (intelligence.Payload, error) {
	f.calls++
	return f.payload, f.err
}

type fakeRenderer struct {
	chunks []string
	err    error
	calls  int
	onEmit func(i int)
}

func (f *fakeRenderer) Render(_ context.Context, _ models.OwnerType, _ intelligence.Payload, _ render.Options, onChunk func(string) error) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	var b strings.Builder
	for i, c := range f.chunks {
		b.WriteString(c)
		if onChunk != nil {
			if err := onChunk(c); err != nil {
				return "", err
			}
		}
		if f.onEmit != nil {
			f.onEmit(i)
		}
	}
	return b.String(), nil
}

type fakePages struct {
	pages []*models.PageRecordModel
	err   error
}

func (f *fakePages) Create(_ context.Context, page *models.PageRecordModel) error {
	if f.err != nil {
		return f.err
	}
	page.ID = "page-1"
	f.pages = append(f.pages, page)
	return nil
}

func newTestRunner(store *fakeStore, ex *fakeExtractor, re *fakeRenderer, pages *fakePages) *Runner {
	return NewRunner(store, ex, re, pages, time.Second, time.Second, zap.NewNop())
}

func docRequest() Request {
	return Request{
		OwnerType: models.OwnerDocument,
		OwnerID:   "doc-1",
		UserID:    "user-1",
		RawText:   "quarterly migration plan",
	}
}

func TestStageTransitions(t *testing.T) {
	legal := []struct{ from, to Stage }{
		{StageInitial, StageParsing},
		{StageInitial, StageHTMLRendering},
		{StageParsing, StageDecisionStructuring},
		{StageParsing, StageHTMLRendering},
		{StageDecisionStructuring, StageHTMLRendering},
		{StageHTMLRendering, StageFinalizing},
		{StageFinalizing, StageDone},
		{StageParsing, StageFailed},
		{StageFinalizing, StageFailed},
	}
	for _, tc := range legal {
		assert.True(t, tc.from.CanTransition(tc.to), "%q -> %q should be legal", tc.from, tc.to)
	}

	illegal := []struct{ from, to Stage }{
		{StageInitial, StageFinalizing},
		{StageDecisionStructuring, StageParsing},
		{StageHTMLRendering, StageDecisionStructuring},
		{StageFinalizing, StageParsing},
		{StageDone, StageFailed},
		{StageFailed, StageParsing},
	}
	for _, tc := range illegal {
		assert.False(t, tc.from.CanTransition(tc.to), "%q -> %q should be illegal", tc.from, tc.to)
	}
}

func TestMachineRejectsIllegalTransition(t *testing.T) {
	m := newMachine(&memSink{})
	err := m.to(StageFinalizing, 100, "Ready")
	require.Error(t, err)
	assert.Equal(t, KindInternal, AsFailure(err).Kind)
}

func TestGenerateFreshOwner(t *testing.T) {
	store := &fakeStore{}
	ex := &fakeExtractor{payload: intelligence.Payload{"document_overview": "x"}}
	re := &fakeRenderer{chunks: []string{"<h1>T</h1>", "<p>b</p>"}}
	pages := &fakePages{}
	sink := &memSink{}

	err := newTestRunner(store, ex, re, pages).Generate(context.Background(), docRequest(), sink)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"progress:Parsing",
		"progress:Decision Structuring",
		"progress:Decision Structuring",
		"progress:HTML Rendering",
		"progress:HTML Rendering", "html",
		"progress:HTML Rendering", "html",
		"progress:Finalizing",
		"done",
	}, sink.sequence())
	requireMonotonic(t, sink.percents())

	assert.Equal(t, 1, ex.calls)
	assert.Equal(t, 1, store.putCalls)
	require.Len(t, pages.pages, 1)
	page := pages.pages[0]
	assert.Equal(t, 1, page.IntelligenceVersion)
	assert.Equal(t, "technical", page.Style)
	assert.Contains(t, page.HTML, "<h1>T</h1><p>b</p>")

	done := sink.events[len(sink.events)-1].Data.(DoneData)
	assert.Equal(t, "ok", done.Status)
	assert.Equal(t, "page-1", done.PageID)
}

func TestGenerateCachedSkipsExtraction(t *testing.T) {
	store := &fakeStore{rec: &models.IntelligenceRecordModel{
		OwnerID:   "doc-1",
		OwnerType: models.OwnerDocument,
		Current:   intelligence.Payload{"document_overview": "x"},
		Version:   3,
	}}
	ex := &fakeExtractor{}
	re := &fakeRenderer{chunks: []string{"<p>a</p>"}}
	pages := &fakePages{}
	sink := &memSink{}

	err := newTestRunner(store, ex, re, pages).Generate(context.Background(), docRequest(), sink)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"progress:Parsing",
		"progress:Decision Structuring",
		"progress:HTML Rendering",
		"progress:HTML Rendering", "html",
		"progress:Finalizing",
		"done",
	}, sink.sequence())

	assert.Zero(t, ex.calls)
	assert.Zero(t, store.putCalls)
	require.Len(t, pages.pages, 1)
	assert.Equal(t, 3, pages.pages[0].IntelligenceVersion)
}

func TestRerenderEntersAtHTMLRendering(t *testing.T) {
	store := &fakeStore{rec: &models.IntelligenceRecordModel{
		Current: intelligence.Payload{"document_overview": "x"},
		Version: 2,
	}}
	ex := &fakeExtractor{}
	re := &fakeRenderer{chunks: []string{strings.Repeat("x", 10000)}}
	pages := &fakePages{}
	sink := &memSink{}

	req := docRequest()
	req.Options = render.Options{Style: render.StyleBusiness}
	err := newTestRunner(store, ex, re, pages).Rerender(context.Background(), req, sink)
	require.NoError(t, err)

	seq := sink.sequence()
	assert.Equal(t, "progress:HTML Rendering", seq[0])
	assert.NotContains(t, seq, "progress:Parsing")
	assert.NotContains(t, seq, "progress:Decision Structuring")
	requireMonotonic(t, sink.percents())

	// A large chunk saturates at the re-render cap until Finalizing.
	percents := sink.percents()
	assert.Equal(t, 95, percents[len(percents)-2])
	assert.Equal(t, 100, percents[len(percents)-1])

	assert.Zero(t, ex.calls)
	assert.Zero(t, store.putCalls)
	require.Len(t, pages.pages, 1)
	assert.Equal(t, 2, pages.pages[0].IntelligenceVersion)
	assert.Equal(t, "business", pages.pages[0].Style)
}

func TestRerenderMissingIntelligence(t *testing.T) {
	sink := &memSink{}
	err := newTestRunner(&fakeStore{}, &fakeExtractor{}, &fakeRenderer{}, &fakePages{}).
		Rerender(context.Background(), docRequest(), sink)

	require.Error(t, err)
	assert.Equal(t, KindNotFound, AsFailure(err).Kind)
	assert.Empty(t, sink.events, "missing intelligence must fail before any event")
}

func TestGenerateExtractionFailure(t *testing.T) {
	store := &fakeStore{}
	ex := &fakeExtractor{err: errors.New("model refused")}
	pages := &fakePages{}
	sink := &memSink{}

	err := newTestRunner(store, ex, &fakeRenderer{}, pages).Generate(context.Background(), docRequest(), sink)
	require.Error(t, err)
	assert.Equal(t, KindExtraction, AsFailure(err).Kind)

	last := sink.events[len(sink.events)-1].Data.(ErrorData)
	assert.Equal(t, "extraction", last.Kind)
	assert.Contains(t, last.Message, "Extraction failed:")

	assert.Zero(t, store.putCalls)
	assert.Empty(t, pages.pages)
}

func TestGenerateTimeoutKind(t *testing.T) {
	ex := &fakeExtractor{err: context.DeadlineExceeded}
	sink := &memSink{}

	err := newTestRunner(&fakeStore{}, ex, &fakeRenderer{}, &fakePages{}).
		Generate(context.Background(), docRequest(), sink)
	require.Error(t, err)
	assert.Equal(t, KindTimeout, AsFailure(err).Kind)
}

func TestGenerateConflictOnCommit(t *testing.T) {
	store := &fakeStore{putErr: intelligence.ErrConflict}
	ex := &fakeExtractor{payload: intelligence.Payload{"document_overview": "x"}}
	pages := &fakePages{}
	sink := &memSink{}

	err := newTestRunner(store, ex, &fakeRenderer{}, pages).Generate(context.Background(), docRequest(), sink)
	require.Error(t, err)
	assert.Equal(t, KindConflict, AsFailure(err).Kind)
	assert.Empty(t, pages.pages)

	last := sink.events[len(sink.events)-1].Data.(ErrorData)
	assert.Equal(t, "conflict", last.Kind)
}

func TestRenderFailure(t *testing.T) {
	store := &fakeStore{rec: &models.IntelligenceRecordModel{
		Current: intelligence.Payload{"document_overview": "x"},
		Version: 1,
	}}
	re := &fakeRenderer{err: errors.New("stream broke")}
	pages := &fakePages{}
	sink := &memSink{}

	err := newTestRunner(store, &fakeExtractor{}, re, pages).Generate(context.Background(), docRequest(), sink)
	require.Error(t, err)
	assert.Equal(t, KindRender, AsFailure(err).Kind)
	assert.Empty(t, pages.pages)
}

func TestCancellationPersistsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := &fakeStore{rec: &models.IntelligenceRecordModel{
		Current: intelligence.Payload{"document_overview": "x"},
		Version: 1,
	}}
	re := &fakeRenderer{chunks: []string{"<p>a</p>", "<p>b</p>"}}
	re.onEmit = func(i int) {
		if i == 0 {
			cancel()
		}
	}
	pages := &fakePages{}
	sink := &memSink{}

	err := newTestRunner(store, &fakeExtractor{}, re, pages).Generate(ctx, docRequest(), sink)
	require.Error(t, err)
	assert.Equal(t, KindCancelled, AsFailure(err).Kind)
	assert.Empty(t, pages.pages, "a cancelled run must not persist a partial page")
	assert.NotContains(t, sink.sequence(), "done")
}

func TestSinkErrorStopsRun(t *testing.T) {
	clientGone := errors.New("broken pipe")
	sink := &memSink{failAt: 2, err: clientGone}
	store := &fakeStore{}
	ex := &fakeExtractor{payload: intelligence.Payload{"document_overview": "x"}}
	pages := &fakePages{}

	err := newTestRunner(store, ex, &fakeRenderer{}, pages).Generate(context.Background(), docRequest(), sink)
	assert.ErrorIs(t, err, clientGone)
	assert.Zero(t, ex.calls, "no extraction after the client disconnects")
	assert.Empty(t, pages.pages)
}

func TestGenerateThenRerenderKeepsVersion(t *testing.T) {
	store := &fakeStore{}
	ex := &fakeExtractor{payload: intelligence.Payload{"document_overview": "x"}}
	re := &fakeRenderer{chunks: []string{"<p>v</p>"}}
	pages := &fakePages{}
	runner := newTestRunner(store, ex, re, pages)

	require.NoError(t, runner.Generate(context.Background(), docRequest(), &memSink{}))

	req := docRequest()
	req.Options = render.Options{Style: render.StyleExecutive, Language: render.LanguageZH}
	require.NoError(t, runner.Rerender(context.Background(), req, &memSink{}))

	assert.Equal(t, 1, ex.calls)
	assert.Equal(t, 1, store.putCalls)
	require.Len(t, pages.pages, 2)
	assert.Equal(t, pages.pages[0].IntelligenceVersion, pages.pages[1].IntelligenceVersion)
	assert.Equal(t, "executive", pages.pages[1].Style)
	assert.Equal(t, "zh", pages.pages[1].Language)
}

func TestReextractBumpsVersionWithCAS(t *testing.T) {
	store := &fakeStore{rec: &models.IntelligenceRecordModel{
		Current: intelligence.Payload{"document_overview": "old"},
		Version: 2,
	}}
	ex := &fakeExtractor{payload: intelligence.Payload{"document_overview": "new"}}
	runner := newTestRunner(store, ex, &fakeRenderer{}, &fakePages{})

	rec, err := runner.Reextract(context.Background(), models.OwnerDocument, "doc-1", "text")
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Version)
	assert.Equal(t, "new", rec.Current["document_overview"])

	store.putErr = intelligence.ErrConflict
	_, err = runner.Reextract(context.Background(), models.OwnerDocument, "doc-1", "text")
	assert.ErrorIs(t, err, intelligence.ErrConflict)
}

func TestSSESinkFrames(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	sink := NewSSESink(c)

	require.NoError(t, sink.Send(Event{Name: EventProgress, Data: ProgressData{Stage: "Parsing", Percent: 10, Message: "Parsing source content"}}))
	require.NoError(t, sink.Send(Event{Name: EventHTML, Data: HTMLData{Chunk: "<p>a</p>"}}))
	require.NoError(t, sink.Send(Event{Name: EventDone, Data: DoneData{Status: "ok"}}))

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "event: progress\ndata: {\"stage\":\"Parsing\",\"percent\":10,\"message\":\"Parsing source content\"}\n\n")
	assert.Contains(t, body, "event: html\ndata: {\"chunk\":\"\\u003cp\\u003ea\\u003c/p\\u003e\"}\n\n")
	assert.Contains(t, body, "event: done\n")
}
