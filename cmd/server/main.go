package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bloodbridge/bloodbridge/internal/app"
	"github.com/bloodbridge/bloodbridge/pkg/logger"
)

const defaultShutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to the configuration directory or file",
		EnvVars: []string{app.EnvPrefix + "_CONFIG"},
	}

	return &cli.App{
		Name:   "bloodbridge",
		Usage:  "blood donation coordination API",
		Flags:  []cli.Flag{configFlag},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and background jobs",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply schema migrations and seed the administrator, then exit",
				Action: migrate,
			},
		},
	}
}

func serve(c *cli.Context) error {
	cfg, loader, err := loadApplicationConfig(c.String("config"))
	if err != nil {
		return err
	}
	if err := app.ConfigureLogging(cfg.Server.LogLevel, cfg.Log); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	log := logger.WithModule("bootstrap")
	loader.OnLogLevelChange(func(level string) {
		logger.SetLevel(level)
		log.Info("log level changed", zap.String("level", level))
	})

	stack, err := bootstrapRuntime(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer stack.Shutdown(log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           stack.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	g, gctx := errgroup.WithContext(c.Context)
	g.Go(func() error {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

func migrate(c *cli.Context) error {
	cfg, _, err := loadApplicationConfig(c.String("config"))
	if err != nil {
		return err
	}
	if err := app.ConfigureLogging(cfg.Server.LogLevel, cfg.Log); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	log := logger.WithModule("migrate")
	db, err := initialiseDatabase(c.Context, cfg, log)
	if err != nil {
		return err
	}
	closeDatabase(db, log)
	log.Info("migrations applied")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, *app.Loader, error) {
	if strings.TrimSpace(path) == "" {
		return app.NewLoader()
	}

	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return app.NewLoader(path)
	case err == nil:
		return app.NewLoader(filepath.Dir(path))
	case errors.Is(err, os.ErrNotExist):
		return nil, nil, fmt.Errorf("config path %q does not exist", path)
	default:
		return nil, nil, fmt.Errorf("stat config path: %w", err)
	}
}
