package system

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	pkgcron "github.com/decidepage/core/internal/pkg/cron"
	"github.com/decidepage/core/internal/pkg/pagination"
	redisc "github.com/decidepage/core/internal/pkg/redis"
	"github.com/decidepage/core/internal/pkg/response"
	"github.com/decidepage/core/internal/pkg/runs"
)

// Handler exposes operational endpoints: health checks, the run registry and
// the background job scheduler.
type Handler struct {
	db       *gorm.DB
	rc       *redisc.Client
	registry *runs.Registry
	sched    *pkgcron.Scheduler
	started  time.Time
}

func NewHandler(db *gorm.DB, rc *redisc.Client, registry *runs.Registry, sched *pkgcron.Scheduler) *Handler {
	return &Handler{db: db, rc: rc, registry: registry, sched: sched, started: time.Now()}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/health", h.health)

	g := rg.Group("/system", authMW)
	g.GET("/runs", h.listRuns)
	g.GET("/runs/:id", h.getRun)
	g.DELETE("/runs", h.pruneRuns)
	g.GET("/jobs", h.listJobs)
	g.POST("/jobs/:name/run", h.runJob)
}

// GET /health
func (h *Handler) health(c *gin.Context) {
	dbOK := true
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		dbOK = false
	}
	redisOK := h.rc.Raw().Ping(c.Request.Context()).Err() == nil

	response.OK(c, gin.H{
		"ok":     dbOK && redisOK,
		"db":     dbOK,
		"redis":  redisOK,
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// GET /system/runs?status=running
func (h *Handler) listRuns(c *gin.Context) {
	q := pagination.FromContext(c)

	var status *runs.Status
	if raw := c.Query("status"); raw != "" {
		s := runs.Status(raw)
		switch s {
		case runs.RunRunning, runs.RunCompleted, runs.RunFailed, runs.RunCancelled:
			status = &s
		default:
			response.BadRequest(c, "unknown status")
			return
		}
	}

	items, total, err := h.registry.List(c.Request.Context(), q.Page, q.Size, status)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{
		"data":  items,
		"total": total,
	})
}

// GET /system/runs/:id
func (h *Handler) getRun(c *gin.Context) {
	run, err := h.registry.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if run == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, run)
}

// DELETE /system/runs?before_ms=...
func (h *Handler) pruneRuns(c *gin.Context) {
	beforeMS := int64(0)
	if raw := c.Query("before_ms"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.BadRequest(c, "before_ms must be a unix millisecond timestamp")
			return
		}
		beforeMS = parsed
	}

	if err := h.registry.PruneFinished(c.Request.Context(), beforeMS); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

// GET /system/jobs
func (h *Handler) listJobs(c *gin.Context) {
	response.OK(c, h.sched.List())
}

// POST /system/jobs/:name/run
func (h *Handler) runJob(c *gin.Context) {
	if err := h.sched.Run(c.Request.Context(), c.Param("name")); err != nil {
		response.NotFoundMsg(c, err.Error())
		return
	}
	response.OK(c, gin.H{"ok": true})
}
