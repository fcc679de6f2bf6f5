package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/submissions-pipeline/internal/common"
	"github.com/joseph-ayodele/submissions-pipeline/internal/entity"
	"github.com/joseph-ayodele/submissions-pipeline/internal/ingest"
	"github.com/joseph-ayodele/submissions-pipeline/internal/metrics"
	"github.com/joseph-ayodele/submissions-pipeline/internal/services/processing"
)

const headerRequestID = "X-Request-ID"

// Processing is the project trigger surface served over HTTP.
type Processing interface {
	CreateProject(ctx context.Context, req processing.CreateProjectRequest) (*entity.Project, error)
	StartProcessing(ctx context.Context, projectID string) (processing.StartResult, error)
	ResetProject(ctx context.Context, projectID string, reprocess bool) (processing.ResetResult, error)
	RetryFailed(ctx context.Context, projectID string) (processing.StartResult, error)
	ScanProject(ctx context.Context, projectID string) (ingest.ScanResult, error)
	ProjectStatus(ctx context.Context, projectID string) (*processing.ProjectStatus, error)
	ListSlides(ctx context.Context, submissionID string) ([]entity.Slide, error)
}

// Exporter renders a project's slides as a workbook.
type Exporter interface {
	ProjectSlidesXLSX(ctx context.Context, projectID uuid.UUID) ([]byte, error)
}

type Deps struct {
	Processing     Processing
	Exporter       Exporter
	Ping           func(ctx context.Context) error
	AllowedOrigins []string
	Debug          bool
	Logger         *slog.Logger
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(requestLogger(d.Logger))
	router.Use(metrics.GinMiddleware())

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", headerRequestID},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", headerRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(d.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = d.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	h := &handlers{processing: d.Processing, exporter: d.Exporter, ping: d.Ping, logger: d.Logger}

	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	api.POST("/projects", h.createProject)
	api.GET("/projects/:id", h.projectStatus)
	api.POST("/projects/:id/process", h.startProcessing)
	api.POST("/projects/:id/reset", h.resetProject)
	api.POST("/projects/:id/retry", h.retryFailed)
	api.POST("/projects/:id/scan", h.scanProject)
	api.GET("/projects/:id/export.xlsx", h.exportProject)
	api.GET("/submissions/:id/slides", h.listSlides)

	return router
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), id))
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
			"request_id", common.RequestIDFromContext(c.Request.Context()),
		)
	}
}
