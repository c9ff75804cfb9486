package app

import (
	"database/sql"

	httpapi "github.com/yungbote/forfeit-backend/internal/http"
	httpH "github.com/yungbote/forfeit-backend/internal/http/handlers"
	httpMW "github.com/yungbote/forfeit-backend/internal/http/middleware"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg Config, sqlDB *sql.DB, services Services) *httpapi.Server {
	log.Info("Wiring HTTP server...")
	var health *httpH.HealthHandler
	if sqlDB != nil {
		health = httpH.NewHealthHandler(sqlDB)
	} else {
		health = httpH.NewHealthHandler(nil)
	}
	return httpapi.NewServer(httpapi.RouterConfig{
		Log:                log,
		ServiceName:        cfg.ServiceName,
		CORSOrigins:        cfg.CORSOrigins,
		Metrics:            services.Metrics,
		ServiceAuth:        httpMW.NewServiceAuth(log, cfg.ServiceJWTSecret),
		HealthHandler:      health,
		EnforcementHandler: httpH.NewEnforcementHandler(services.Orchestrator),
		SubmissionHandler:  httpH.NewSubmissionHandler(services.Grading),
	})
}
