package app

import (
	"strings"

	"github.com/yungbote/forfeit-backend/internal/data/db"
	"github.com/yungbote/forfeit-backend/internal/enforcement"
	"github.com/yungbote/forfeit-backend/internal/platform/envutil"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
	"github.com/yungbote/forfeit-backend/internal/platform/observability"
)

const defaultServiceName = "forfeit-backend"

type Config struct {
	ServiceName      string
	Port             string
	ServiceJWTSecret string
	CORSOrigins      []string
	// RunLoops starts the in-process enforcement and reminder tickers.
	RunLoops    bool
	Postgres    db.PostgresConfig
	Otel        observability.OtelConfig
	Enforcement enforcement.Config
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		ServiceName:      envutil.String("SERVICE_NAME", defaultServiceName),
		Port:             envutil.String("PORT", "8080"),
		ServiceJWTSecret: envutil.String("SERVICE_JWT_SECRET", ""),
		CORSOrigins:      splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),
		RunLoops:         envutil.Bool("ENFORCEMENT_LOOPS_ENABLED", false),
		Postgres:         db.PostgresConfigFromEnv(),
		Enforcement:      enforcement.ConfigFromEnv(),
	}
	cfg.Otel = observability.OtelConfigFromEnv(cfg.ServiceName)
	if cfg.ServiceJWTSecret == "" {
		log.Warn("SERVICE_JWT_SECRET not set; internal endpoints will refuse every request")
	}
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
