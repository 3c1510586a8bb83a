package app

import (
	"gorm.io/gorm"

	apphttp "github.com/yungbote/autopilot-backend/internal/http"
	httpH "github.com/yungbote/autopilot-backend/internal/http/handlers"
	httpMW "github.com/yungbote/autopilot-backend/internal/http/middleware"
	"github.com/yungbote/autopilot-backend/internal/observability"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg Config, db *gorm.DB, svc Services, c Clients, metrics *observability.Metrics) *apphttp.Server {
	serviceName := ""
	if cfg.Telemetry.Enabled {
		serviceName = cfg.Telemetry.ServiceName
	}
	return apphttp.NewServer(apphttp.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    serviceName,
		CORSOrigins:    cfg.Server.CORSOrigins,
		WebhookSecret:  cfg.Server.WebhookSecret,
		AuthMiddleware: httpMW.NewAuthMiddleware(log, svc.Auth),

		HealthHandler:  httpH.NewHealthHandler(log, db),
		MetricsHandler: httpH.NewMetricsHandler(svc.Runs, svc.Tasks, metrics),
		WebhookHandler: httpH.NewWebhookHandler(log, svc.Dispatcher, metrics),
		RunHandler:     httpH.NewRunHandler(log, svc.Runs, c.Blobs),
		ReportHandler:  httpH.NewReportHandler(svc.Reports),
		TaskHandler:    httpH.NewTaskHandler(log, svc.Tasks),
	})
}
