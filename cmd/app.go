package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sandor-zhong/baby-chengcheng/config"
	"github.com/sandor-zhong/baby-chengcheng/controllers"
	"github.com/sandor-zhong/baby-chengcheng/routes"
	"github.com/sandor-zhong/baby-chengcheng/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// buildApp opens the database and wires services, controllers and routes.
func buildApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := config.Migrate(db); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(reg)

	store, err := newMediaStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	mailer, err := newMailer(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	hub := services.NewRealtimeHub(log.Named("realtime"))
	undo := services.NewUndoLedger(cfg.UndoWindow)
	media := services.NewMediaService(store, cfg.MaxUploadMB<<20, cfg.CoverMaxWidth, cfg.CoverQuality, log.Named("media"))

	users := services.NewUserService(db, mailer, cfg.Now, log.Named("users"))
	events := services.NewEventService(db, cfg.Now, undo, hub, metrics, log.Named("events"))
	moments := services.NewMomentService(db, media, cfg.Now, metrics, log.Named("moments"))
	profiles := services.NewProfileService(cfg.DataDir, store,
		services.ImageOverrides{Avatar: cfg.AvatarURL, Cover: cfg.CoverURL}, cfg.Now, log.Named("profiles"))

	aiOpts := services.AIOptions{
		Kind:          cfg.AIModelType,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OllamaModel:   cfg.OllamaModel,
		OpenAIKey:     cfg.OpenAIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIModel:   cfg.OpenAIModel,
		FastMode:      cfg.AIFastMode,
		Timeout:       cfg.AITimeout,
	}
	provider := services.NewProvider(aiOpts)
	ai := services.NewAIService(provider, aiOpts, cfg.AICacheTTL, events, moments, profiles, metrics, log.Named("ai"))
	log.Info("assistant provider", zap.String("provider", provider.Name()))

	secret := []byte(cfg.JWTSecret)
	staticDir := ""
	if cfg.MediaBackend != "s3" {
		staticDir = cfg.StaticDir
	}
	return routes.SetupRouter(routes.Deps{
		Secret:         secret,
		SecureCookie:   cfg.IsProduction(),
		MaxUploadBytes: cfg.MaxUploadMB << 20,
		StaticDir:      staticDir,
		Log:            log,
		Metrics:        metrics,
		Gatherer:       reg,

		Auth:     controllers.NewAuthController(users, secret, cfg.TokenTTL, cfg.IsProduction()),
		Events:   controllers.NewEventController(events, cfg.Now),
		Moments:  controllers.NewMomentController(moments, cfg.PublicURL),
		Profile:  controllers.NewProfileController(profiles, media),
		AI:       controllers.NewAIController(ai),
		Realtime: controllers.NewRealtimeController(hub),
	}), nil
}

func newMediaStore(ctx context.Context, cfg *config.Config) (services.MediaStore, error) {
	switch cfg.MediaBackend {
	case "s3":
		s, err := services.NewS3Store(ctx, cfg.S3Region, cfg.S3Bucket, cfg.S3PublicURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "", "local":
		return services.NewLocalStore(filepath.Clean(cfg.StaticDir), "/static"), nil
	default:
		return nil, fmt.Errorf("unknown MEDIA_BACKEND %q", cfg.MediaBackend)
	}
}

func newMailer(ctx context.Context, cfg *config.Config, log *zap.Logger) (services.Mailer, error) {
	if cfg.SESEmail == "" {
		return services.NewLogMailer(log.Named("mail")), nil
	}
	m, err := services.NewSESMailer(ctx, cfg.AWSRegion, cfg.SESEmail)
	if err != nil {
		return nil, err
	}
	return m, nil
}
