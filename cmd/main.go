package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sandor-zhong/baby-chengcheng/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	envFile string
	addr    string
}

func rootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:          "babycare",
		Short:        "Baby-care tracker: feeds, diapers, moments and an AI assistant",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), f)
		},
	}
	root.PersistentFlags().StringVar(&f.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().StringVar(&f.addr, "addr", "", "listen address (overrides ADDR)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), f)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(f)
		},
	})
	return root
}

func setup(f *flags) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return nil, nil, err
	}
	if f.addr != "" {
		cfg.Addr = f.addr
	}
	log, err := config.NewLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func runMigrate(f *flags) error {
	cfg, log, err := setup(f)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := config.OpenDB(cfg)
	if err != nil {
		return err
	}
	if err := config.Migrate(db); err != nil {
		return err
	}
	log.Info("schema migrated")
	return nil
}

func runServe(parent context.Context, f *flags) error {
	cfg, log, err := setup(f)
	if err != nil {
		return err
	}
	defer log.Sync()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
