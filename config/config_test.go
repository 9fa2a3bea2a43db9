package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"APP_ENV", "SECRET_KEY", "TIMEZONE_OFFSET", "UNDO_WINDOW", "MEDIA_BACKEND",
		"S3_BUCKET", "AI_MODEL_TYPE", "AI_TIMEOUT", "OLLAMA_BASE_URL", "MAX_UPLOAD_MB", "ADDR"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "dev-secret-key", cfg.JWTSecret)
	assert.Equal(t, 30*time.Second, cfg.UndoWindow)
	assert.Equal(t, int64(15), cfg.MaxUploadMB)
	assert.Equal(t, "local", cfg.MediaBackend)
	assert.Equal(t, "ollama", cfg.AIModelType)
	assert.Equal(t, "http://localhost:11434", cfg.OllamaBaseURL)

	_, offset := cfg.Now().Zone()
	assert.Equal(t, 8*3600, offset)
}

func TestLoadFromEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides variables that exist, even empty ones.
	for _, k := range []string{"TIMEZONE_OFFSET", "AI_TIMEOUT", "OLLAMA_BASE_URL"} {
		require.NoError(t, os.Unsetenv(k))
	}

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TIMEZONE_OFFSET=-5\nAI_TIMEOUT=20\nOLLAMA_BASE_URL=http://gpu:11434/\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	_, offset := cfg.Now().Zone()
	assert.Equal(t, -5*3600, offset)
	assert.Equal(t, 20*time.Second, cfg.AITimeout)
	assert.Equal(t, "http://gpu:11434", cfg.OllamaBaseURL)
}

func TestLoadRejects(t *testing.T) {
	t.Run("production without secret", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("APP_ENV", "production")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("s3 without bucket", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MEDIA_BACKEND", "S3")
		_, err := Load("")
		assert.ErrorContains(t, err, "S3_BUCKET")
	})
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("X_DURATION", "90s")
	assert.Equal(t, 90*time.Second, envDuration("X_DURATION", time.Second))
	t.Setenv("X_DURATION", "45")
	assert.Equal(t, 45*time.Second, envDuration("X_DURATION", time.Second))
	t.Setenv("X_DURATION", "soon")
	assert.Equal(t, time.Second, envDuration("X_DURATION", time.Second))
}

func TestDialectorFor(t *testing.T) {
	assert.IsType(t, &postgres.Dialector{}, dialectorFor("postgres://u:p@db/baby"))
	assert.IsType(t, &postgres.Dialector{}, dialectorFor("host=db user=u dbname=baby"))
	assert.IsType(t, &sqlite.Dialector{}, dialectorFor(""))
	assert.IsType(t, &sqlite.Dialector{}, dialectorFor("sqlite:///tmp/baby.db"))
}
