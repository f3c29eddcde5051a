package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir runs the test from an empty directory so no config.toml or .env is picked up
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		inTempDir(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "astroguard-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "astroguard", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, "http://localhost:8000", cfg.Detection.BaseURL)
		assert.Equal(t, 0.5, cfg.Detection.Confidence)
		assert.Equal(t, 2*time.Minute, cfg.Detection.Timeout)
		assert.Equal(t, "detections", cfg.Storage.Bucket)
		assert.False(t, cfg.Storage.Enabled)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
		assert.Equal(t, time.Hour, cfg.Cache.VideoResultTTL)
		assert.Equal(t, 16, cfg.Realtime.ClientBuffer)
	})

	t.Run("loads values from environment variables with AG prefix", func(t *testing.T) {
		inTempDir(t)
		t.Setenv("AG_APP_PORT", "9000")
		t.Setenv("AG_DATABASE_HOST", "db.internal")
		t.Setenv("AG_DATABASE_PORT", "5433")
		t.Setenv("AG_DETECTION_BASE_URL", "https://detector.example.com")
		t.Setenv("AG_DETECTION_CONFIDENCE", "0.35")
		t.Setenv("AG_DETECTION_TIMEOUT", "45s")
		t.Setenv("AG_REDIS_ENABLED", "true")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "db.internal", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "https://detector.example.com", cfg.Detection.BaseURL)
		assert.Equal(t, 0.35, cfg.Detection.Confidence)
		assert.Equal(t, 45*time.Second, cfg.Detection.Timeout)
		assert.True(t, cfg.Redis.Enabled)
	})

	t.Run("reads .env file", func(t *testing.T) {
		dir := inTempDir(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AG_STORAGE_KEY_PREFIX=dotenv-prefix\n"), 0o600))
		t.Cleanup(func() { _ = os.Unsetenv("AG_STORAGE_KEY_PREFIX") })

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "dotenv-prefix", cfg.Storage.KeyPrefix)
	})

	t.Run("reads config.toml", func(t *testing.T) {
		dir := inTempDir(t)
		toml := "[detection]\nbase_url = \"http://yolo:9000\"\nmax_image_dimension = 640\n\n[storage]\nenabled = true\nbucket = \"shots\"\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o600))

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "http://yolo:9000", cfg.Detection.BaseURL)
		assert.Equal(t, 640, cfg.Detection.MaxImageDimension)
		assert.True(t, cfg.Storage.Enabled)
		assert.Equal(t, "shots", cfg.Storage.Bucket)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		inTempDir(t)
		t.Setenv("AG_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("AG_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects confidence outside unit interval", func(t *testing.T) {
		inTempDir(t)
		t.Setenv("AG_DETECTION_CONFIDENCE", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "detection.confidence")
	})

	t.Run("rejects relative detection URL", func(t *testing.T) {
		inTempDir(t)
		t.Setenv("AG_DETECTION_BASE_URL", "detector:8000")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "detection.base_url")
	})

	t.Run("rejects unknown log level", func(t *testing.T) {
		inTempDir(t)
		t.Setenv("AG_LOG_LEVEL", "verbose")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log.level")
	})

	t.Run("requires database password in production", func(t *testing.T) {
		inTempDir(t)
		t.Setenv("AG_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		inTempDir(t)
		t.Setenv("AG_APP_ENV", "production")
		t.Setenv("AG_DATABASE_PASSWORD", "secret")

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: "secret", DBName: "astroguard", SSLMode: "disable"}

	assert.Equal(t, "postgres://app:secret@db:5432/astroguard?sslmode=disable", d.DSN())

	d.Password = "p@ss"
	assert.Contains(t, d.DSN(), "p%40ss@db:5432")
}
