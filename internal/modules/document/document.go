package document

import (
	"bytes"
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gorm.io/gorm"

	"github.com/decidepage/core/internal/middleware"
	"github.com/decidepage/core/internal/models"
	"github.com/decidepage/core/internal/modules/extract"
	"github.com/decidepage/core/internal/modules/intelligence"
	"github.com/decidepage/core/internal/modules/pipeline"
	"github.com/decidepage/core/internal/modules/render"
	"github.com/decidepage/core/internal/pkg/pagination"
	"github.com/decidepage/core/internal/pkg/response"
	"github.com/decidepage/core/internal/pkg/runs"
)

// Service handles document persistence and its derived artifacts. Deleting a
// document also removes its intelligence record and pages.
type Service struct {
	db    *gorm.DB
	store *intelligence.Store
}

func NewService(db *gorm.DB, store *intelligence.Store) *Service {
	return &Service{db: db, store: store}
}

func (s *Service) Get(ctx context.Context, id string) (*models.DocumentModel, error) {
	var doc models.DocumentModel
	if err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Service) Create(ctx context.Context, doc *models.DocumentModel) error {
	return s.db.WithContext(ctx).Create(doc).Error
}

func (s *Service) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.DocumentModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	if err := s.store.Delete(ctx, models.OwnerDocument, id); err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", models.OwnerDocument, id).
		Delete(&models.PageRecordModel{}).Error
}

// Handler exposes the document endpoints.
type Handler struct {
	svc      *Service
	runner   *pipeline.Runner
	registry *runs.Registry
	md       goldmark.Markdown
}

func NewHandler(svc *Service, runner *pipeline.Runner, registry *runs.Registry) *Handler {
	return &Handler{
		svc:      svc,
		runner:   runner,
		registry: registry,
		md:       goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/documents", authMW)
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)

	g.GET("/:id/preview", h.preview)
	g.GET("/:id/intelligence", h.getIntelligence)
	g.POST("/:id/extract", h.reextract)
	g.POST("/:id/generate", h.generate)
	g.POST("/:id/render", h.rerender)
}

type createDTO struct {
	Title      string `json:"title"       binding:"required"`
	Text       string `json:"text"        binding:"required"`
	SourceName string `json:"source_name"`
}

type updateDTO struct {
	Title      *string `json:"title"`
	Text       *string `json:"text"`
	SourceName *string `json:"source_name"`
}

// POST /documents
func (h *Handler) create(c *gin.Context) {
	var dto createDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	doc := models.DocumentModel{
		Title:      dto.Title,
		RawText:    dto.Text,
		SourceName: dto.SourceName,
		UserID:     middleware.UserID(c),
	}
	if err := h.svc.Create(c.Request.Context(), &doc); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, doc)
}

// GET /documents
func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	tx := h.svc.db.WithContext(c.Request.Context()).
		Model(&models.DocumentModel{}).
		Order("created_at DESC")

	var items []models.DocumentModel
	pag, err := pagination.Paginate(tx, q, &items)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

// GET /documents/:id
func (h *Handler) get(c *gin.Context) {
	doc, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, doc)
}

// PATCH /documents/:id
//
// Editing the raw text does not invalidate cached intelligence; re-extraction
// is an explicit POST /documents/:id/extract.
func (h *Handler) update(c *gin.Context) {
	var dto updateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	doc, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}

	if dto.Title != nil {
		doc.Title = *dto.Title
	}
	if dto.Text != nil {
		doc.RawText = *dto.Text
	}
	if dto.SourceName != nil {
		doc.SourceName = *dto.SourceName
	}
	if err := h.svc.db.WithContext(c.Request.Context()).Save(doc).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, doc)
}

// DELETE /documents/:id
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

// GET /documents/:id/preview
func (h *Handler) preview(c *gin.Context) {
	doc, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.md.Convert([]byte(doc.RawText), &buf); err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"html": buf.String()})
}

// GET /documents/:id/intelligence
func (h *Handler) getIntelligence(c *gin.Context) {
	rec, err := h.svc.store.Get(c.Request.Context(), models.OwnerDocument, c.Param("id"))
	if err != nil {
		if errors.Is(err, intelligence.ErrNotFound) {
			response.NotFoundMsg(c, "no intelligence extracted for this document")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{
		"current":      rec.Current,
		"previous":     rec.Previous,
		"version":      rec.Version,
		"extracted_at": rec.ExtractedAt,
	})
}

// POST /documents/:id/extract
func (h *Handler) reextract(c *gin.Context) {
	doc, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}

	rec, err := h.runner.Reextract(c.Request.Context(), models.OwnerDocument, doc.ID, doc.RawText)
	if err != nil {
		switch {
		case errors.Is(err, intelligence.ErrConflict):
			response.Conflict(c, "intelligence changed concurrently, re-read and retry")
		case errors.Is(err, extract.ErrEmptyInput):
			response.BadRequest(c, "document has no text to extract from")
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, gin.H{
		"current": rec.Current,
		"version": rec.Version,
	})
}

// POST /documents/:id/generate  SSE streaming
func (h *Handler) generate(c *gin.Context) {
	doc, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}

	opts, ok := bindOptions(c, models.OwnerDocument)
	if !ok {
		return
	}

	req := pipeline.Request{
		OwnerType: models.OwnerDocument,
		OwnerID:   doc.ID,
		UserID:    middleware.UserID(c),
		RawText:   doc.RawText,
		Options:   opts,
	}
	pipeline.Serve(c, h.registry, runs.KindGenerate, req, func(ctx context.Context, sink pipeline.EventSink) error {
		return h.runner.Generate(ctx, req, sink)
	})
}

// POST /documents/:id/render  SSE streaming
func (h *Handler) rerender(c *gin.Context) {
	doc, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}

	if _, err := h.svc.store.Get(c.Request.Context(), models.OwnerDocument, doc.ID); err != nil {
		if errors.Is(err, intelligence.ErrNotFound) {
			response.BadRequest(c, "no intelligence extracted for this document, generate first")
			return
		}
		response.InternalError(c, err)
		return
	}

	opts, ok := bindOptions(c, models.OwnerDocument)
	if !ok {
		return
	}

	req := pipeline.Request{
		OwnerType: models.OwnerDocument,
		OwnerID:   doc.ID,
		UserID:    middleware.UserID(c),
		Options:   opts,
	}
	pipeline.Serve(c, h.registry, runs.KindRender, req, func(ctx context.Context, sink pipeline.EventSink) error {
		return h.runner.Rerender(ctx, req, sink)
	})
}

// bindOptions reads render options from the request body, which may be empty,
// and rejects invalid values before the stream starts.
func bindOptions(c *gin.Context, ownerType models.OwnerType) (render.Options, bool) {
	var opts render.Options
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			response.BadRequest(c, err.Error())
			return render.Options{}, false
		}
	}
	normalized, err := opts.Normalize(ownerType)
	if err != nil {
		response.BadRequest(c, err.Error())
		return render.Options{}, false
	}
	return normalized, true
}
