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

	"go.uber.org/zap"

	"github.com/edgelayer/cachelayer/internal/api"
	"github.com/edgelayer/cachelayer/internal/cache"
	"github.com/edgelayer/cachelayer/internal/clock/system"
	"github.com/edgelayer/cachelayer/internal/config"
	collyfetcher "github.com/edgelayer/cachelayer/internal/fetcher/colly"
	"github.com/edgelayer/cachelayer/internal/hash/sha256"
	"github.com/edgelayer/cachelayer/internal/id/uuid"
	"github.com/edgelayer/cachelayer/internal/logging"
	"github.com/edgelayer/cachelayer/internal/metrics"
	memorypublisher "github.com/edgelayer/cachelayer/internal/publisher/memory"
	pubsubpublisher "github.com/edgelayer/cachelayer/internal/publisher/pubsub"
	"github.com/edgelayer/cachelayer/internal/reconcile"
	"github.com/edgelayer/cachelayer/internal/secrets"
	"github.com/edgelayer/cachelayer/internal/sitemap"
	memoryStorage "github.com/edgelayer/cachelayer/internal/storage/memory"
	"github.com/edgelayer/cachelayer/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hasher := sha256.New()
	clock := system.New()
	idGen := uuid.New()

	var (
		clientStore cache.ClientStore
		pageStore   cache.PageStore
	)
	if cfg.DB.DSN != "" {
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			logger.Fatal("database init failed", zap.Error(err))
		}
		defer pool.Close()
		clientStore = postgres.NewClientStore(pool)
		pageStore = postgres.NewPageStore(pool, hasher)
		logger.Info("using postgres stores")
	} else {
		clientStore = memoryStorage.NewClientStore()
		pageStore = memoryStorage.NewPageStore()
		logger.Warn("db.dsn not set, using in-memory stores")
	}

	var publisher cache.Publisher
	if cfg.PubSub.ProjectID != "" {
		pub, err := pubsubpublisher.New(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := pub.Close(); closeErr != nil {
				logger.Warn("pubsub close failed", zap.Error(closeErr))
			}
		}()
		publisher = pub
	} else {
		publisher = memorypublisher.New()
		logger.Warn("pubsub.project_id not set, using in-memory publisher")
	}

	var box cache.SecretBox
	if cfg.Secrets.Key != "" {
		box, err = secrets.New(cfg.Secrets.Key)
		if err != nil {
			logger.Fatal("secrets init failed", zap.Error(err))
		}
	} else {
		logger.Warn("secrets.key not set, client api tokens cannot be stored")
	}

	metrics.Init()
	fetcher := metrics.NewInstrumentedFetcher(collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Sitemap.UserAgent,
		Timeout:   time.Duration(cfg.Sitemap.TimeoutSeconds) * time.Second,
	}))
	resolver := sitemap.NewResolver(fetcher, logger.Named("resolver"))
	engine := reconcile.NewEngine(pageStore, hasher, clock, idGen, logger.Named("reconcile"))

	apiServer := api.NewServer(
		clientStore,
		pageStore,
		resolver,
		engine,
		publisher,
		box,
		idGen,
		clock,
		cfg,
		logger.Named("api"),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
