// Command intervened is the intervention decision daemon: it loads the
// configuration, restores learned strategy weights, and serves the
// decision API over HTTP until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/intervene/internal/audit"
	"github.com/danielpatrickdp/intervene/internal/config"
	"github.com/danielpatrickdp/intervene/internal/engine"
	"github.com/danielpatrickdp/intervene/internal/feedback"
	"github.com/danielpatrickdp/intervene/internal/gate"
	"github.com/danielpatrickdp/intervene/internal/history"
	"github.com/danielpatrickdp/intervene/internal/selector"
	"github.com/danielpatrickdp/intervene/internal/server"
	"github.com/danielpatrickdp/intervene/internal/strategy"
	"github.com/danielpatrickdp/intervene/internal/telemetry"
)

// #region main

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()
	log := logger.Sugar()

	if err := run(cfg, log); err != nil {
		log.Fatalw("daemon exited", "error", err)
	}
}

// #endregion main

// #region run

func run(cfg config.Config, log *zap.SugaredLogger) error {
	store, err := history.NewSQLStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	auditLog, err := audit.NewLog(store.DB())
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}

	catalog := strategy.NewBuiltinCatalog()
	if err := restoreWeights(store, catalog, log); err != nil {
		return err
	}

	var provider telemetry.Provider
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rp := telemetry.NewRedisProvider(client)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rp.Ping(pingCtx); err != nil {
			log.Warnw("redis unreachable, telemetry disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			provider = rp
		}
		cancel()
	}

	eng := engine.New(
		gate.New(cfg.Gate),
		selector.New(catalog, cfg.Selector, log),
		feedback.New(catalog, store, log),
		store,
		engine.Options{Audit: auditLog, Log: log},
	)

	srv := server.New(eng, catalog, store, server.Options{
		Provider:       provider,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            log,
	})
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("listening", "addr", cfg.Server.Addr, "db", cfg.Database.Path)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// restoreWeights overlays persisted weights onto the catalog. Weights for
// strategies no longer registered are skipped, not fatal.
func restoreWeights(store history.Store, catalog *strategy.Catalog, log *zap.SugaredLogger) error {
	weights, err := store.LoadWeights()
	if err != nil {
		return fmt.Errorf("load weights: %w", err)
	}
	for name, w := range weights {
		if err := catalog.SetWeight(name, w); err != nil {
			var nf *strategy.NotFoundError
			if errors.As(err, &nf) {
				log.Warnw("persisted weight for unknown strategy, skipping", "strategy", name)
				continue
			}
			return fmt.Errorf("restore weight %s: %w", name, err)
		}
	}
	if len(weights) > 0 {
		log.Infow("strategy weights restored", "count", len(weights))
	}
	return nil
}

// #endregion run

// #region logger

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewDevelopmentConfig()
	if cfg.JSON {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// #endregion logger
