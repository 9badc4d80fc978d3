// Command xsessiond is a demo web server for xsession: a login page, two
// protected pages and a logout link, with sessions kept in a configurable
// store and lifecycle counters exposed on /metrics.
//
// Usage:
//
//	xsessiond [-config xsessiond.toml]
//
// Settings come from the environment (see Config), optionally layered on
// a TOML file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bluescreen10/xsession/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	backend, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.close(); err != nil {
			logger.Warn("close store", slog.Any("error", err))
		}
	}()

	hash, err := adminHash(cfg, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a := newApp(backend.store, cfg, hash, logger, metrics.NewCollector(reg))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.routes(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Info("listening", slog.String("addr", cfg.Addr), slog.String("store", cfg.Store))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if backend.cleanup != nil && cfg.CleanupInterval > 0 {
		eg.Go(func() error {
			backend.cleanup(cfg.CleanupInterval, ctx.Done())
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}

// adminHash returns the configured bcrypt hash, or a hash of "admin" when
// none is set.
func adminHash(cfg Config, logger *slog.Logger) ([]byte, error) {
	if cfg.AdminPasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(cfg.AdminPasswordHash)); err != nil {
			return nil, fmt.Errorf("invalid ADMIN_PASSWORD_HASH: %w", err)
		}
		return []byte(cfg.AdminPasswordHash), nil
	}
	logger.Warn("ADMIN_PASSWORD_HASH not set, using the default password")
	return bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
}
