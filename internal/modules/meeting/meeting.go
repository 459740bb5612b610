package meeting

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
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

// Service handles meeting persistence. Deleting a meeting also removes its
// intelligence record and pages.
type Service struct {
	db    *gorm.DB
	store *intelligence.Store
}

func NewService(db *gorm.DB, store *intelligence.Store) *Service {
	return &Service{db: db, store: store}
}

func (s *Service) Get(ctx context.Context, id string) (*models.MeetingModel, error) {
	var meeting models.MeetingModel
	if err := s.db.WithContext(ctx).First(&meeting, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &meeting, nil
}

func (s *Service) Create(ctx context.Context, meeting *models.MeetingModel) error {
	return s.db.WithContext(ctx).Create(meeting).Error
}

func (s *Service) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.MeetingModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	if err := s.store.Delete(ctx, models.OwnerMeeting, id); err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", models.OwnerMeeting, id).
		Delete(&models.PageRecordModel{}).Error
}

// Handler exposes the meeting endpoints.
type Handler struct {
	svc      *Service
	runner   *pipeline.Runner
	registry *runs.Registry
}

func NewHandler(svc *Service, runner *pipeline.Runner, registry *runs.Registry) *Handler {
	return &Handler{svc: svc, runner: runner, registry: registry}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/meetings", authMW)
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)

	g.GET("/:id/intelligence", h.getIntelligence)
	g.GET("/:id/personas", h.getPersonas)
	g.POST("/:id/extract", h.reextract)
	g.POST("/:id/generate", h.generate)
	g.POST("/:id/render", h.rerender)
}

type createDTO struct {
	Title      string `json:"title"      binding:"required"`
	Transcript string `json:"transcript" binding:"required"`
	SourceName string `json:"source_name"`
}

type updateDTO struct {
	Title      *string `json:"title"`
	Transcript *string `json:"transcript"`
	SourceName *string `json:"source_name"`
}

// POST /meetings
func (h *Handler) create(c *gin.Context) {
	var dto createDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	meeting := models.MeetingModel{
		Title:      dto.Title,
		Transcript: dto.Transcript,
		SourceName: dto.SourceName,
		UserID:     middleware.UserID(c),
	}
	if err := h.svc.Create(c.Request.Context(), &meeting); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, meeting)
}

// GET /meetings
func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	tx := h.svc.db.WithContext(c.Request.Context()).
		Model(&models.MeetingModel{}).
		Order("created_at DESC")

	var items []models.MeetingModel
	pag, err := pagination.Paginate(tx, q, &items)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

// GET /meetings/:id
func (h *Handler) get(c *gin.Context) {
	meeting, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, meeting)
}

// PATCH /meetings/:id
func (h *Handler) update(c *gin.Context) {
	var dto updateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	meeting, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}

	if dto.Title != nil {
		meeting.Title = *dto.Title
	}
	if dto.Transcript != nil {
		meeting.Transcript = *dto.Transcript
	}
	if dto.SourceName != nil {
		meeting.SourceName = *dto.SourceName
	}
	if err := h.svc.db.WithContext(c.Request.Context()).Save(meeting).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, meeting)
}

// DELETE /meetings/:id
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

// GET /meetings/:id/intelligence
func (h *Handler) getIntelligence(c *gin.Context) {
	rec, err := h.svc.store.Get(c.Request.Context(), models.OwnerMeeting, c.Param("id"))
	if err != nil {
		if errors.Is(err, intelligence.ErrNotFound) {
			response.NotFoundMsg(c, "no intelligence extracted for this meeting")
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

// GET /meetings/:id/personas
// intelligence, the same view the query engine grounds on
func (h *Handler) getPersonas(c *gin.Context) {
	rec, err := h.svc.store.Get(c.Request.Context(), models.OwnerMeeting, c.Param("id"))
	if err != nil {
		if errors.Is(err, intelligence.ErrNotFound) {
			response.NotFoundMsg(c, "no intelligence extracted for this meeting")
			return
		}
		response.InternalError(c, err)
		return
	}

	personas := make([]map[string]interface{}, 0)
	if raw, ok := rec.Current["participants"].([]interface{}); ok {
		for _, item := range raw {
			if p, ok := item.(map[string]interface{}); ok {
				personas = append(personas, p)
			}
		}
	}
	response.OK(c, gin.H{
		"personas": personas,
		"version":  rec.Version,
	})
}

// POST /meetings/:id/extract
func (h *Handler) reextract(c *gin.Context) {
	meeting, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}

	rec, err := h.runner.Reextract(c.Request.Context(), models.OwnerMeeting, meeting.ID, meeting.Transcript)
	if err != nil {
		switch {
		case errors.Is(err, intelligence.ErrConflict):
			response.Conflict(c, "intelligence changed concurrently, re-read and retry")
		case errors.Is(err, extract.ErrEmptyInput):
			response.BadRequest(c, "meeting has no transcript to extract from")
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

// POST /meetings/:id/generate  SSE streaming
func (h *Handler) generate(c *gin.Context) {
	meeting, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}

	opts, ok := bindOptions(c)
	if !ok {
		return
	}

	req := pipeline.Request{
		OwnerType: models.OwnerMeeting,
		OwnerID:   meeting.ID,
		UserID:    middleware.UserID(c),
		RawText:   meeting.Transcript,
		Options:   opts,
	}
	pipeline.Serve(c, h.registry, runs.KindGenerate, req, func(ctx context.Context, sink pipeline.EventSink) error {
		return h.runner.Generate(ctx, req, sink)
	})
}

// POST /meetings/:id/render  SSE streaming
func (h *Handler) rerender(c *gin.Context) {
	meeting, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}

	if _, err := h.svc.store.Get(c.Request.Context(), models.OwnerMeeting, meeting.ID); err != nil {
		if errors.Is(err, intelligence.ErrNotFound) {
			response.BadRequest(c, "no intelligence extracted for this meeting, generate first")
			return
		}
		response.InternalError(c, err)
		return
	}

	opts, ok := bindOptions(c)
	if !ok {
		return
	}

	req := pipeline.Request{
		OwnerType: models.OwnerMeeting,
		OwnerID:   meeting.ID,
		UserID:    middleware.UserID(c),
		Options:   opts,
	}
	pipeline.Serve(c, h.registry, runs.KindRender, req, func(ctx context.Context, sink pipeline.EventSink) error {
		return h.runner.Rerender(ctx, req, sink)
	})
}

func bindOptions(c *gin.Context) (render.Options, bool) {
	var opts render.Options
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			response.BadRequest(c, err.Error())
			return render.Options{}, false
		}
	}
	normalized, err := opts.Normalize(models.OwnerMeeting)
	if err != nil {
		response.BadRequest(c, err.Error())
		return render.Options{}, false
	}
	return normalized, true
}
