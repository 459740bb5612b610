package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/decidepage/core/internal/models"
	"github.com/decidepage/core/internal/modules/intelligence"
	"github.com/decidepage/core/internal/modules/render"
)

// IntelligenceStore is the versioned cache the pipeline reads and commits to.
type IntelligenceStore interface {
	Get(ctx context.Context, ownerType models.OwnerType, ownerID string) (*models.IntelligenceRecordModel, error)
	Put(ctx context.Context, ownerType models.OwnerType, ownerID string, payload intelligence.Payload, expectVersion int) (*models.IntelligenceRecordModel, error)
}

// Extractor produces an intelligence payload from raw text.
type Extractor interface {
	Extract(ctx context.Context, ownerType models.OwnerType, rawText string) (intelligence.Payload, error)
}

// Renderer streams page HTML for a payload.
type Renderer interface {
	Render(ctx context.Context, ownerType models.OwnerType, payload intelligence.Payload, opts render.Options, onChunk func(string) error) (string, error)
}

// PageStore persists finished pages.
type PageStore interface {
	Create(ctx context.Context, page *models.PageRecordModel) error
}

// Runner drives one generation or re-render run end to end: stage machine,
// cache lookups, the LLM calls, and the final page write.
type Runner struct {
	store    IntelligenceStore
	extract  Extractor
	renderer Renderer
	pages    PageStore
	logger   *zap.Logger

	extractTimeout time.Duration
	renderTimeout  time.Duration
}

func NewRunner(store IntelligenceStore, extractor Extractor, renderer Renderer, pages PageStore, extractTimeout, renderTimeout time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:          store,
		extract:        extractor,
		renderer:       renderer,
		pages:          pages,
		logger:         logger,
		extractTimeout: extractTimeout,
		renderTimeout:  renderTimeout,
	}
}

// Request identifies the owner and render configuration for one run.
type Request struct {
	OwnerType models.OwnerType
	OwnerID   string
	UserID    string
	RawText   string
	Options   render.Options
}

// Generate runs the full pipeline. Cached intelligence short-circuits
// extraction; a cache miss extracts and commits a new generation before
// rendering. The page record is written at Finalizing only.
func (r *Runner) Generate(ctx context.Context, req Request, sink EventSink) error {
	opts, err := req.Options.Normalize(req.OwnerType)
	if err != nil {
		return &Failure{Kind: KindInternal, Err: err}
	}

	m := newMachine(sink)
	if err := m.to(StageParsing, 10, "Parsing source content"); err != nil {
		return err
	}

	var payload intelligence.Payload
	var version int

	rec, err := r.store.Get(ctx, req.OwnerType, req.OwnerID)
	switch {
	case err == nil:
		payload = rec.Current
		version = rec.Version
	case errors.Is(err, intelligence.ErrNotFound):
		if err := m.to(StageDecisionStructuring, 30, "Extracting intelligence"); err != nil {
			return err
		}
		ectx, cancel := withTimeout(ctx, r.extractTimeout)
		payload, err = r.extract.Extract(ectx, req.OwnerType, req.RawText)
		cancel()
		if err != nil {
			return r.abort(m, sink, classifyExtractErr(err))
		}
		stored, err := r.store.Put(ctx, req.OwnerType, req.OwnerID, payload, 0)
		if err != nil {
			return r.abort(m, sink, classifyStoreErr(err))
		}
		version = stored.Version
	default:
		return r.abort(m, sink, classifyStoreErr(err))
	}

	if m.stage == StageDecisionStructuring {
		err = m.progress(55, "Structuring intelligence")
	} else {
		err = m.to(StageDecisionStructuring, 55, "Structuring intelligence")
	}
	if err != nil {
		return err
	}

	html, ferr := r.renderStage(ctx, m, sink, req.OwnerType, payload, opts, 90, 80)
	if ferr != nil {
		return ferr
	}
	return r.finalize(ctx, m, sink, req, opts, version, html)
}

// Rerender re-enters the pipeline at HTML Rendering using the cached payload.
// It never calls the extractor and never changes the intelligence version.
// Missing intelligence is a synchronous not_found before any event is sent.
func (r *Runner) Rerender(ctx context.Context, req Request, sink EventSink) error {
	opts, err := req.Options.Normalize(req.OwnerType)
	if err != nil {
		return &Failure{Kind: KindInternal, Err: err}
	}

	rec, err := r.store.Get(ctx, req.OwnerType, req.OwnerID)
	if err != nil {
		return classifyStoreErr(err)
	}

	m := newMachine(sink)
	html, ferr := r.renderStage(ctx, m, sink, req.OwnerType, rec.Current, opts, 95, 100)
	if ferr != nil {
		return ferr
	}
	return r.finalize(ctx, m, sink, req, opts, rec.Version, html)
}

// Reextract forces a new extraction over the cached record, committing with
// compare-and-swap on the version that was read. Used by the explicit
// re-extract endpoints; callers translate ErrConflict into a retry response.
func (r *Runner) Reextract(ctx context.Context, ownerType models.OwnerType, ownerID, rawText string) (*models.IntelligenceRecordModel, error) {
	expect := 0
	if rec, err := r.store.Get(ctx, ownerType, ownerID); err == nil {
		expect = rec.Version
	} else if !errors.Is(err, intelligence.ErrNotFound) {
		return nil, err
	}

	ectx, cancel := withTimeout(ctx, r.extractTimeout)
	defer cancel()
	payload, err := r.extract.Extract(ectx, ownerType, rawText)
	if err != nil {
		return nil, classifyExtractErr(err)
	}
	return r.store.Put(ctx, ownerType, ownerID, payload, expect)
}

// renderStage streams the HTML with per-chunk progress capped at maxPercent,
// advancing by one point per divisor rendered bytes.
func (r *Runner) renderStage(ctx context.Context, m *machine, sink EventSink, ownerType models.OwnerType, payload intelligence.Payload, opts render.Options, maxPercent, divisor int) (string, error) {
	if err := m.to(StageHTMLRendering, 60, "Rendering decision page"); err != nil {
		return "", err
	}

	rendered := 0
	rctx, cancel := withTimeout(ctx, r.renderTimeout)
	defer cancel()

	html, err := r.renderer.Render(rctx, ownerType, payload, opts, func(chunk string) error {
		rendered += len(chunk)
		pct := 60 + rendered/divisor
		if pct > maxPercent {
			pct = maxPercent
		}
		if err := m.progress(pct, "Rendering decision page"); err != nil {
			return err
		}
		return sink.Send(Event{Name: EventHTML, Data: HTMLData{Chunk: chunk}})
	})
	if err != nil {
		return "", r.abort(m, sink, classifyRenderErr(err))
	}
	return html, nil
}

// finalize writes the page record and closes the stream. A cancelled context
// fails the run before anything is persisted.
func (r *Runner) finalize(ctx context.Context, m *machine, sink EventSink, req Request, opts render.Options, version int, html string) error {
	if err := ctx.Err(); err != nil {
		m.fail()
		return &Failure{Kind: KindCancelled, Err: err}
	}
	if err := m.to(StageFinalizing, 100, "Ready"); err != nil {
		return err
	}

	page := &models.PageRecordModel{
		OwnerID:             req.OwnerID,
		OwnerType:           req.OwnerType,
		Style:               opts.Style,
		Language:            opts.Language,
		PageLimit:           opts.PageLimit,
		HTML:                render.WrapDocument(html),
		IntelligenceVersion: version,
		UserID:              req.UserID,
	}
	if err := r.pages.Create(ctx, page); err != nil {
		return r.abort(m, sink, &Failure{Kind: KindInternal, Err: err})
	}

	m.stage = StageDone
	r.logger.Info("run complete",
		zap.String("owner_type", string(req.OwnerType)),
		zap.String("owner_id", req.OwnerID),
		zap.String("page_id", page.ID),
		zap.Int("intelligence_version", version),
	)
	return sink.Send(Event{Name: EventDone, Data: DoneData{Status: "ok", PageID: page.ID}})
}

// abort marks the run failed and emits a terminal error event. The event send
// is best effort; a disconnected client cannot receive it.
func (r *Runner) abort(m *machine, sink EventSink, f *Failure) error {
	m.fail()
	r.logger.Warn("run failed", zap.String("kind", string(f.Kind)), zap.Error(f.Err))
	_ = sink.Send(Event{Name: EventError, Data: ErrorData{
		Kind:    string(f.Kind),
		Message: failureMessage(f),
	}})
	return f
}

func failureMessage(f *Failure) string {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	switch f.Kind {
	case KindExtraction:
		return "Extraction failed: " + msg
	case KindRender:
		return "Rendering failed: " + msg
	case KindTimeout:
		return "Run timed out: " + msg
	case KindConflict:
		return "Intelligence changed concurrently, retry the request"
	default:
		return msg
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
