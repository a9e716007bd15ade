package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"ORDERFLOW_APP_NAME":                os.Getenv("ORDERFLOW_APP_NAME"),
		"ORDERFLOW_APP_ENV":                 os.Getenv("ORDERFLOW_APP_ENV"),
		"ORDERFLOW_APP_PORT":                os.Getenv("ORDERFLOW_APP_PORT"),
		"ORDERFLOW_DATABASE_HOST":           os.Getenv("ORDERFLOW_DATABASE_HOST"),
		"ORDERFLOW_DATABASE_PORT":           os.Getenv("ORDERFLOW_DATABASE_PORT"),
		"ORDERFLOW_DATABASE_USER":           os.Getenv("ORDERFLOW_DATABASE_USER"),
		"ORDERFLOW_DATABASE_PASSWORD":       os.Getenv("ORDERFLOW_DATABASE_PASSWORD"),
		"ORDERFLOW_DATABASE_DBNAME":         os.Getenv("ORDERFLOW_DATABASE_DBNAME"),
		"ORDERFLOW_DATABASE_SSLMODE":        os.Getenv("ORDERFLOW_DATABASE_SSLMODE"),
		"ORDERFLOW_DATABASE_MAX_OPEN_CONNS": os.Getenv("ORDERFLOW_DATABASE_MAX_OPEN_CONNS"),
		"ORDERFLOW_DATABASE_MAX_IDLE_CONNS": os.Getenv("ORDERFLOW_DATABASE_MAX_IDLE_CONNS"),
		"ORDERFLOW_JOBS_MAX_ATTEMPTS":       os.Getenv("ORDERFLOW_JOBS_MAX_ATTEMPTS"),
		"ORDERFLOW_JOBS_RETRY_DELAY":        os.Getenv("ORDERFLOW_JOBS_RETRY_DELAY"),
		"ORDERFLOW_IDEMPOTENCY_TTL":         os.Getenv("ORDERFLOW_IDEMPOTENCY_TTL"),
		"APP_ENV":                           os.Getenv("APP_ENV"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "orderflow-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "postgres", cfg.Database.User)
		assert.Equal(t, "", cfg.Database.Password)
		assert.Equal(t, "orderflow", cfg.Database.DBName)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
	})

	t.Run("applies job executor defaults", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 5, cfg.Jobs.Workers)
		assert.Equal(t, 3, cfg.Jobs.MaxAttempts)
		assert.Equal(t, 30*time.Second, cfg.Jobs.RetryDelay)
		assert.Equal(t, time.Second, cfg.Jobs.InitialDelay)
		assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	})

	t.Run("applies telemetry defaults with tracing off", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.False(t, cfg.Telemetry.Enabled)
		assert.Equal(t, "localhost:4317", cfg.Telemetry.CollectorEndpoint)
		assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)
		assert.Equal(t, cfg.App.Name, cfg.Telemetry.ServiceName)
	})

	t.Run("loads values from environment variables with ORDERFLOW prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("ORDERFLOW_APP_NAME", "test-app")
		os.Setenv("ORDERFLOW_APP_ENV", "testing")
		os.Setenv("ORDERFLOW_APP_PORT", "9000")
		os.Setenv("ORDERFLOW_DATABASE_HOST", "testdb.local")
		os.Setenv("ORDERFLOW_DATABASE_PORT", "5433")
		os.Setenv("ORDERFLOW_DATABASE_USER", "testuser")
		os.Setenv("ORDERFLOW_DATABASE_PASSWORD", "testpass")
		os.Setenv("ORDERFLOW_DATABASE_DBNAME", "testdb")
		os.Setenv("ORDERFLOW_DATABASE_SSLMODE", "require")
		os.Setenv("ORDERFLOW_DATABASE_MAX_OPEN_CONNS", "50")
		os.Setenv("ORDERFLOW_DATABASE_MAX_IDLE_CONNS", "10")
		os.Setenv("ORDERFLOW_JOBS_RETRY_DELAY", "45s")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testing", cfg.App.Env)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "testuser", cfg.Database.User)
		assert.Equal(t, "testpass", cfg.Database.Password)
		assert.Equal(t, "testdb", cfg.Database.DBName)
		assert.Equal(t, "require", cfg.Database.SSLMode)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, 45*time.Second, cfg.Jobs.RetryDelay)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("ORDERFLOW_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("ORDERFLOW_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("zero MaxOpenConns uses default", func(t *testing.T) {
		clearEnv()
		os.Setenv("ORDERFLOW_DATABASE_MAX_OPEN_CONNS", "0")

		cfg, err := Load()
		require.NoError(t, err)
		// 0 is treated as "not set", so default (25) is used
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	})

	t.Run("validates MaxIdleConns cannot be negative", func(t *testing.T) {
		clearEnv()
		os.Setenv("ORDERFLOW_DATABASE_MAX_IDLE_CONNS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns cannot be negative")
	})

	t.Run("validates idempotency ttl lower bound", func(t *testing.T) {
		clearEnv()
		os.Setenv("ORDERFLOW_IDEMPOTENCY_TTL", "5s")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "idempotency.ttl")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	originalEnv := map[string]string{
		"ORDERFLOW_APP_ENV":                  os.Getenv("ORDERFLOW_APP_ENV"),
		"ORDERFLOW_DATABASE_PASSWORD":        os.Getenv("ORDERFLOW_DATABASE_PASSWORD"),
		"ORDERFLOW_DATABASE_SSLMODE":         os.Getenv("ORDERFLOW_DATABASE_SSLMODE"),
		"ORDERFLOW_WEBHOOK_VERIFY_ENABLED":   os.Getenv("ORDERFLOW_WEBHOOK_VERIFY_ENABLED"),
		"ORDERFLOW_WEBHOOK_SUPPLIER_SECRET":  os.Getenv("ORDERFLOW_WEBHOOK_SUPPLIER_SECRET"),
		"ORDERFLOW_WEBHOOK_FORWARDER_SECRET": os.Getenv("ORDERFLOW_WEBHOOK_FORWARDER_SECRET"),
		"APP_ENV":                            os.Getenv("APP_ENV"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	// Helper to set valid production base config
	setValidProductionBase := func() {
		os.Setenv("ORDERFLOW_APP_ENV", "production")
		os.Setenv("ORDERFLOW_DATABASE_PASSWORD", "secure-password")
		os.Setenv("ORDERFLOW_DATABASE_SSLMODE", "require")
		os.Setenv("ORDERFLOW_WEBHOOK_VERIFY_ENABLED", "true")
		os.Setenv("ORDERFLOW_WEBHOOK_SUPPLIER_SECRET", "supplier-webhook-secret")
		os.Setenv("ORDERFLOW_WEBHOOK_FORWARDER_SECRET", "forwarder-webhook-secret")
	}

	t.Run("requires database.password in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("ORDERFLOW_DATABASE_PASSWORD")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("ORDERFLOW_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("requires webhook verification in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("ORDERFLOW_WEBHOOK_VERIFY_ENABLED", "false")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "webhook.verify_enabled must be true in production")
	})

	t.Run("requires webhook secrets when verification is on", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("ORDERFLOW_WEBHOOK_SUPPLIER_SECRET")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "webhook secrets are required")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		// URL-encoded password should be in the DSN
		assert.Contains(t, dsn, "pass%40word%23123")
	})

	t.Run("handles empty password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.NotEmpty(t, dsn)
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{Host: "cache.local", Port: 6380}
	assert.Equal(t, "cache.local:6380", cfg.Addr())
}
