package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/autopilot-backend/internal/http/handlers"
	httpMW "github.com/yungbote/autopilot-backend/internal/http/middleware"
	"github.com/yungbote/autopilot-backend/internal/observability"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	CORSOrigins    []string
	WebhookSecret  string
	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler  *httpH.HealthHandler
	MetricsHandler *httpH.MetricsHandler
	WebhookHandler *httpH.WebhookHandler
	RunHandler     *httpH.RunHandler
	ReportHandler  *httpH.ReportHandler
	TaskHandler    *httpH.TaskHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/", cfg.HealthHandler.Root)
		r.GET("/health", cfg.HealthHandler.HealthCheck)
	}
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", cfg.MetricsHandler.Stats)
		r.GET("/metrics/prometheus", cfg.MetricsHandler.Prometheus)
	}

	// Webhooks
	if cfg.WebhookHandler != nil {
		hooks := r.Group("/webhook")
		hooks.POST("/kestra", httpMW.WebhookSecret(cfg.WebhookSecret), cfg.WebhookHandler.Kestra)
		hooks.POST("/vercel", cfg.WebhookHandler.Vercel)
	}

	api := r.Group("/api")
	{
		if cfg.RunHandler != nil {
			api.GET("/runs", cfg.RunHandler.ListRuns)
			api.GET("/runs/:id", cfg.RunHandler.GetRun)
			api.GET("/video/:execution_id", cfg.RunHandler.GetVideo)
			api.GET("/status/:execution_id", cfg.RunHandler.StreamStatus)
		}
		if cfg.ReportHandler != nil {
			api.GET("/reports/:execution_id", cfg.ReportHandler.Get)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}
		if cfg.RunHandler != nil {
			protected.POST("/trigger", cfg.RunHandler.Trigger)
		}
		if cfg.ReportHandler != nil {
			protected.POST("/reports", cfg.ReportHandler.Generate)
		}
		if cfg.TaskHandler != nil {
			protected.GET("/tasks", cfg.TaskHandler.ListTasks)
			protected.POST("/tasks/:id/cancel", cfg.TaskHandler.CancelTask)
		}
	}

	return r
}
