package telemetry

import (
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database span recording
type DBTracingConfig struct {
	// Enabled controls whether the otelgorm plugin is registered
	Enabled bool
	// LogFullSQL includes query variables in spans; keep off outside dev
	LogFullSQL bool
	// DBName is the logical database name attached to spans
	DBName string
}

// DefaultDBTracingConfig returns default database tracing configuration
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:    false,
		LogFullSQL: false,
		DBName:     "orderflow",
	}
}

// RegisterDBTracing registers the otelgorm plugin so every repository
// call produces a child span of the request span. Slow-query reporting
// stays with the gorm zap logger; spans carry timing already.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(cfg.DBName),
	}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}

	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.String("db_name", cfg.DBName),
		zap.Bool("log_full_sql", cfg.LogFullSQL),
	)
	return nil
}
