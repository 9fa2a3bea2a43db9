package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read once from the environment.
type Config struct {
	Env  string
	Addr string

	DatabaseURL string
	JWTSecret   string
	TokenTTL    time.Duration
	Location    *time.Location

	UndoWindow  time.Duration
	MaxUploadMB int64
	StaticDir   string
	DataDir     string
	PublicURL   string

	MediaBackend string // "local" | "s3"
	S3Bucket     string
	S3Region     string
	S3PublicURL  string

	AvatarURL     string
	CoverURL      string
	CoverMaxWidth int
	CoverQuality  int

	AIModelType   string // "ollama" | "openai" | "mock"
	OllamaBaseURL string
	OllamaModel   string
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	AIFastMode    bool
	AITimeout     time.Duration
	AICacheTTL    time.Duration

	SESEmail  string
	AWSRegion string

	LogLevel string
}

// Load reads envFile (if present) and then the environment. A missing .env file
// is not an error; a malformed one is.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	offset := envInt("TIMEZONE_OFFSET", 8)
	cfg := &Config{
		Env:         env("APP_ENV", "development"),
		Addr:        env("ADDR", ":8080"),
		DatabaseURL: env("DATABASE_URL", ""),
		JWTSecret:   env("SECRET_KEY", ""),
		TokenTTL:    envDuration("TOKEN_TTL", 30*24*time.Hour),
		Location:    time.FixedZone(fmt.Sprintf("UTC%+d", offset), offset*3600),

		UndoWindow:  envDuration("UNDO_WINDOW", 30*time.Second),
		MaxUploadMB: int64(envInt("MAX_UPLOAD_MB", 15)),
		StaticDir:   env("STATIC_DIR", "static"),
		DataDir:     env("DATA_DIR", "instance"),
		PublicURL:   strings.TrimRight(env("PUBLIC_URL", ""), "/"),

		MediaBackend: strings.ToLower(env("MEDIA_BACKEND", "local")),
		S3Bucket:     env("S3_BUCKET", ""),
		S3Region:     env("S3_REGION", os.Getenv("AWS_REGION")),
		S3PublicURL:  strings.TrimRight(env("S3_PUBLIC_URL", ""), "/"),

		AvatarURL:     env("AVATAR_URL", ""),
		CoverURL:      env("COVER_URL", ""),
		CoverMaxWidth: envInt("COVER_MAX_WIDTH", 1920),
		CoverQuality:  envInt("COVER_QUALITY", 85),

		AIModelType:   strings.ToLower(env("AI_MODEL_TYPE", "ollama")),
		OllamaBaseURL: strings.TrimRight(env("OLLAMA_BASE_URL", "http://localhost:11434"), "/"),
		OllamaModel:   env("OLLAMA_MODEL", "gemma3:1b"),
		OpenAIKey:     env("OPENAI_API_KEY", ""),
		OpenAIBaseURL: env("OPENAI_BASE_URL", ""),
		OpenAIModel:   env("OPENAI_MODEL", "gpt-3.5-turbo"),
		AIFastMode:    envBool("AI_FAST_MODE", true),
		AITimeout:     envDuration("AI_TIMEOUT", 15*time.Second),
		AICacheTTL:    envDuration("AI_CACHE_TTL", time.Hour),

		SESEmail:  env("SES_EMAIL", ""),
		AWSRegion: env("AWS_REGION", ""),

		LogLevel: env("LOG_LEVEL", "info"),
	}
	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("SECRET_KEY must be set in production")
		}
		cfg.JWTSecret = "dev-secret-key"
	}
	if cfg.MediaBackend == "s3" && cfg.S3Bucket == "" {
		return nil, errors.New("MEDIA_BACKEND=s3 requires S3_BUCKET")
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// Now returns the current time in the configured zone.
func (c *Config) Now() time.Time { return time.Now().In(c.Location) }

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(env(key, "")); err == nil {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(env(key, "")); err == nil {
		return v
	}
	return def
}

// envDuration accepts Go durations ("30s") or a bare number of seconds.
func envDuration(key string, def time.Duration) time.Duration {
	v := env(key, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
