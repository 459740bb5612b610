package page

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/decidepage/core/internal/models"
	"github.com/decidepage/core/internal/pkg/pagination"
	"github.com/decidepage/core/internal/pkg/response"
)

// Service persists finalized decision pages. The pipeline writes through
// Create; everything else is read and edit access for clients.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Create satisfies the pipeline's page store.
func (s *Service) Create(ctx context.Context, page *models.PageRecordModel) error {
	return s.db.WithContext(ctx).Create(page).Error
}

func (s *Service) Get(ctx context.Context, id string) (*models.PageRecordModel, error) {
	var page models.PageRecordModel
	if err := s.db.WithContext(ctx).First(&page, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &page, nil
}

// Handler exposes the page endpoints.
type Handler struct {
	svc      *Service
	archiver *Archiver
}

func NewHandler(svc *Service, archiver *Archiver) *Handler {
	return &Handler{svc: svc, archiver: archiver}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/pages", authMW)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/archive", h.archive)
}

// GET /pages?owner_type=document&owner_id=...
func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	tx := h.svc.db.WithContext(c.Request.Context()).
		Model(&models.PageRecordModel{}).
		Order("created_at DESC")

	if ownerType := c.Query("owner_type"); ownerType != "" {
		if !models.OwnerType(ownerType).Valid() {
			response.BadRequest(c, "unknown owner_type")
			return
		}
		tx = tx.Where("owner_type = ?", ownerType)
	}
	if ownerID := c.Query("owner_id"); ownerID != "" {
		tx = tx.Where("owner_id = ?", ownerID)
	}

	var items []models.PageRecordModel
	pag, err := pagination.Paginate(tx, q, &items)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

// GET /pages/:id
func (h *Handler) get(c *gin.Context) {
	page, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, page)
}

type updateDTO struct {
	HTML string `json:"html" binding:"required"`
}

// PATCH /pages/:id
func (h *Handler) update(c *gin.Context) {
	var dto updateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	page, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}

	page.HTML = dto.HTML
	page.Edited = true
	if err := h.svc.db.WithContext(c.Request.Context()).Save(page).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, page)
}

// DELETE /pages/:id
func (h *Handler) delete(c *gin.Context) {
	result := h.svc.db.WithContext(c.Request.Context()).
		Delete(&models.PageRecordModel{}, "id = ?", c.Param("id"))
	if result.Error != nil {
		response.InternalError(c, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		response.NotFound(c)
		return
	}
	response.NoContent(c)
}

// POST /pages/:id/archive
func (h *Handler) archive(c *gin.Context) {
	if h.archiver == nil {
		response.BadRequest(c, "page archiving is not configured")
		return
	}

	page, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}

	url, err := h.archiver.Archive(c.Request.Context(), page)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	page.ArchiveURL = url
	if err := h.svc.db.WithContext(c.Request.Context()).Save(page).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"archive_url": url})
}
