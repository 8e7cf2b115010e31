package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/derlev/sandwich-spawnpoint/internal/middleware"
	"github.com/derlev/sandwich-spawnpoint/internal/models"
	"github.com/derlev/sandwich-spawnpoint/internal/pkg/cron"
	"github.com/derlev/sandwich-spawnpoint/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const pingTimeout = 2 * time.Second

// Handler serves the liveness probe, the API greeting and the job admin routes.
type Handler struct {
	db     *gorm.DB
	sched  *cron.Scheduler
	tokens middleware.TokenValidator
}

func NewHandler(db *gorm.DB, sched *cron.Scheduler, tokens middleware.TokenValidator) *Handler {
	return &Handler{db: db, sched: sched, tokens: tokens}
}

// RegisterRoutes mounts /healthz on root and the rest on api.
func (h *Handler) RegisterRoutes(root gin.IRoutes, api *gin.RouterGroup) {
	root.GET("/healthz", h.healthz)
	api.GET("", h.hello)
	api.GET("/", h.hello)

	jobs := api.Group("/admin/jobs", middleware.Auth(h.tokens, models.RoleAdmin))
	jobs.GET("", h.listJobs)
	jobs.POST("/:name/run", h.runJob)
}

func (h *Handler) healthz(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
		err = sqlDB.PingContext(ctx)
		cancel()
	}
	if err != nil {
		_ = c.Error(err)
		response.Abort(c, http.StatusServiceUnavailable, "Database is unreachable")
		return
	}
	response.Message(c, http.StatusOK, "Ok")
}

func (h *Handler) hello(c *gin.Context) {
	response.Message(c, http.StatusOK, "Hello World!")
}

func (h *Handler) listJobs(c *gin.Context) {
	response.OK(c, h.sched.List())
}

func (h *Handler) runJob(c *gin.Context) {
	item, err := h.sched.Run(c.Request.Context(), c.Param("name"))
	if errors.Is(err, cron.ErrJobNotFound) {
		response.NotFound(c, "Job does not exist")
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, item)
}
