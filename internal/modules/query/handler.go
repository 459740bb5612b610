package query

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/decidepage/core/internal/models"
	"github.com/decidepage/core/internal/modules/intelligence"
	"github.com/decidepage/core/internal/pkg/response"
)

// Handler exposes the grounded question endpoint.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/query", authMW)
	g.POST("/ask", h.ask)
}

type askDTO struct {
	OwnerType string `json:"owner_type" binding:"required"`
	OwnerID   string `json:"owner_id"   binding:"required"`
	Query     string `json:"query"      binding:"required"`
	Target    string `json:"target"`
	Language  string `json:"language"`
}

// POST /query/ask
func (h *Handler) ask(c *gin.Context) {
	var dto askDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ownerType := models.OwnerType(dto.OwnerType)
	if !ownerType.Valid() {
		response.BadRequest(c, "unknown owner_type")
		return
	}

	answer, err := h.engine.Ask(c.Request.Context(), Request{
		OwnerType: ownerType,
		OwnerID:   dto.OwnerID,
		Query:     dto.Query,
		Target:    dto.Target,
		Language:  dto.Language,
	})
	if err != nil {
		switch {
		case errors.Is(err, intelligence.ErrNotFound):
			response.NotFoundMsg(c, "no intelligence extracted for this owner")
		case errors.Is(err, ErrEmptyQuery):
			response.BadRequest(c, "query is required")
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, answer)
}
