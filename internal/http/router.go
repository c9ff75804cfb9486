package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/forfeit-backend/internal/http/handlers"
	httpMW "github.com/yungbote/forfeit-backend/internal/http/middleware"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
	"github.com/yungbote/forfeit-backend/internal/platform/observability"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	Metrics     *observability.Metrics

	ServiceAuth *httpMW.ServiceAuth

	HealthHandler      *httpH.HealthHandler
	EnforcementHandler *httpH.EnforcementHandler
	SubmissionHandler  *httpH.SubmissionHandler
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
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	internal := r.Group("/api/internal")
	{
		if cfg.ServiceAuth != nil {
			internal.Use(cfg.ServiceAuth.RequireService())
		}

		// Enforcement
		if cfg.EnforcementHandler != nil {
			internal.POST("/enforcement/run", cfg.EnforcementHandler.RunEnforcement)
			internal.POST("/reminders/run", cfg.EnforcementHandler.RunReminders)
		}

		// Submissions
		if cfg.SubmissionHandler != nil {
			internal.POST("/submissions/:id/grade", cfg.SubmissionHandler.Grade)
			internal.POST("/submissions/:id/override", cfg.SubmissionHandler.Override)
		}
	}

	return r
}
