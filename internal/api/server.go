// Package api is the HTTP surface: the one-shot /analyze endpoint and the
// session API that drives an orchestrator per client.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/raphaelgruber/reqjourney-go/internal/blob"
	"github.com/raphaelgruber/reqjourney-go/internal/db"
	"github.com/raphaelgruber/reqjourney-go/internal/extraction"
	"github.com/raphaelgruber/reqjourney-go/internal/metrics"
	"github.com/raphaelgruber/reqjourney-go/internal/models"
	"github.com/raphaelgruber/reqjourney-go/internal/service"
	"github.com/raphaelgruber/reqjourney-go/internal/session"
)

// JobHistory lists persisted jobs.
type JobHistory interface {
	ListJobs(ctx context.Context, f db.JobFilter) ([]models.AnalysisJob, error)
	GetJob(ctx context.Context, id string) (*models.AnalysisJob, error)
}

const (
	defaultAnalyzeTimeout = 10 * time.Minute
	defaultMaxUpload      = 256 << 20
)

// Deps are the collaborators the handlers use. Blobs, Metrics and History
// are optional.
type Deps struct {
	Sessions  *session.Manager
	Client    extraction.Client
	Validator *service.ArtifactValidator
	Catalog   *models.Catalog
	Blobs     blob.Store
	Metrics   *metrics.Collector
	History   JobHistory
	Logger    *slog.Logger

	AnalyzeTimeout time.Duration
	MaxUploadBytes int64
}

// Handler serves every route.
type Handler struct {
	Deps
}

// NewHandler fills defaults for unset dependencies.
func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Validator == nil {
		d.Validator = service.NewArtifactValidator(service.Limits{})
	}
	if d.Catalog == nil {
		d.Catalog = models.NewCatalog(nil)
	}
	if d.AnalyzeTimeout <= 0 {
		d.AnalyzeTimeout = defaultAnalyzeTimeout
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = defaultMaxUpload
	}
	return &Handler{Deps: d}
}

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(d Deps) *gin.Engine {
	h := NewHandler(d)

	router := gin.New()
	router.Use(Recovery(h.Logger))
	router.Use(Logger(h.Logger))
	router.Use(CORS())

	SetupRoutes(router, h)
	return router
}

// SetupRoutes registers all endpoints on router.
func SetupRoutes(router *gin.Engine, h *Handler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/analyze", h.Analyze)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/analyze", h.Analyze)
		v1.GET("/systems", h.ListSystems)
		v1.GET("/stats", h.Stats)
		v1.GET("/jobs", h.ListJobs)
		v1.GET("/jobs/:id", h.GetJob)

		sessions := v1.Group("/sessions")
		sessions.POST("", h.CreateSession)
		sessions.GET("/:id", h.GetSession)
		sessions.DELETE("/:id", h.DeleteSession)
		sessions.PUT("/:id/artifact", h.PutArtifact)
		sessions.GET("/:id/artifact", h.GetArtifact)
		sessions.DELETE("/:id/artifact", h.DeleteArtifact)
		sessions.PUT("/:id/systems", h.PutSystems)
		sessions.POST("/:id/stages/:stage", h.RunStage)
		sessions.GET("/:id/results/:stage", h.GetResult)
		sessions.GET("/:id/job", h.GetSessionJob)
		sessions.GET("/:id/job/watch", h.WatchJob)
	}
}

// ListSystems returns the system catalog.
func (h *Handler) ListSystems(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"systems": h.Catalog.Systems()})
}

type statsResponse struct {
	metrics.Snapshot
	Sessions int `json:"sessions"`
}

// Stats returns runtime metrics.
func (h *Handler) Stats(c *gin.Context) {
	var resp statsResponse
	if h.Metrics != nil {
		resp.Snapshot = h.Metrics.Snapshot()
	}
	if h.Sessions != nil {
		resp.Sessions = h.Sessions.Len()
	}
	c.JSON(http.StatusOK, resp)
}
