package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/decidepage/core/internal/middleware"
	"github.com/decidepage/core/internal/modules/document"
	"github.com/decidepage/core/internal/modules/extract"
	"github.com/decidepage/core/internal/modules/intelligence"
	"github.com/decidepage/core/internal/modules/llm"
	"github.com/decidepage/core/internal/modules/meeting"
	"github.com/decidepage/core/internal/modules/page"
	"github.com/decidepage/core/internal/modules/pipeline"
	"github.com/decidepage/core/internal/modules/query"
	"github.com/decidepage/core/internal/modules/render"
	"github.com/decidepage/core/internal/modules/system"
	pkgjwt "github.com/decidepage/core/internal/pkg/jwt"
	"github.com/decidepage/core/internal/pkg/response"
	"github.com/decidepage/core/internal/pkg/runs"
)

const (
	extractMaxOutputTokens = 4096
	renderMaxOutputTokens  = 8192
	queryMaxOutputTokens   = 1024
)

func (a *App) registerRoutes(registry *runs.Registry) error {
	r := a.router
	db := a.db
	authMW := middleware.Auth()

	r.NoRoute(func(c *gin.Context) { response.NotFound(c) })
	r.NoMethod(func(c *gin.Context) { response.MethodNotAllowed(c) })

	// Rate limiting and idempotence run on every route (requires Redis).
	r.Use(middleware.RateLimit(a.rc.Raw()))
	r.Use(middleware.Idempotence(a.rc.Raw()))

	api := r.Group("/api")
	api.Use(middleware.OptionalAuth())

	appInfo := gin.H{
		"name":    "decidepage-core",
		"version": "1.0.0",
	}
	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/info", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })

	// Dev-only token mint; in production tokens are issued out of band.
	if a.cfg.IsDev() {
		api.POST("/auth/dev-token", func(c *gin.Context) {
			var dto struct {
				UserID string `json:"user_id" binding:"required"`
			}
			if err := c.ShouldBindJSON(&dto); err != nil {
				response.BadRequest(c, err.Error())
				return
			}
			token, err := pkgjwt.Sign(dto.UserID, 24*time.Hour)
			if err != nil {
				response.InternalError(c, err)
				return
			}
			response.OK(c, gin.H{"token": token})
		})
	}

	// One LLM client per concern, so each stage can use its own model.
	extractClient, err := llm.New(a.cfg.AI, a.cfg.AI.ExtractModel, extractMaxOutputTokens)
	if err != nil {
		return fmt.Errorf("extract model: %w", err)
	}
	renderClient, err := llm.New(a.cfg.AI, a.cfg.AI.RenderModel, renderMaxOutputTokens)
	if err != nil {
		return fmt.Errorf("render model: %w", err)
	}
	queryClient, err := llm.New(a.cfg.AI, a.cfg.AI.QueryModel, queryMaxOutputTokens)
	if err != nil {
		return fmt.Errorf("query model: %w", err)
	}

	store := intelligence.NewStore(db)
	extractor := extract.NewService(extractClient, a.cfg.AI.MaxInputChars, a.logger.Named("extract"))
	renderer := render.NewService(renderClient, a.logger.Named("render"))
	pageSvc := page.NewService(db)
	runner := pipeline.NewRunner(
		store, extractor, renderer, pageSvc,
		a.cfg.ExtractTimeout(), a.cfg.RenderTimeout(),
		a.logger.Named("pipeline"),
	)
	engine := query.NewEngine(store, queryClient, a.cfg.QueryTimeout(), a.logger.Named("query"))

	document.NewHandler(document.NewService(db, store), runner, registry).RegisterRoutes(api, authMW)
	meeting.NewHandler(meeting.NewService(db, store), runner, registry).RegisterRoutes(api, authMW)
	page.NewHandler(pageSvc, page.NewArchiver(a.cfg.S3)).RegisterRoutes(api, authMW)
	query.NewHandler(engine).RegisterRoutes(api, authMW)
	system.NewHandler(db, a.rc, registry, a.sched).RegisterRoutes(api, authMW)

	return nil
}
