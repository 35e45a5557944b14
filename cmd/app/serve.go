package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httphandler "github.com/Pulth-Team/Pulth-sub000/internal/delivery/http"
	"github.com/Pulth-Team/Pulth-sub000/internal/domain"
	"github.com/Pulth-Team/Pulth-sub000/internal/infrastructure/cache"
	"github.com/Pulth-Team/Pulth-sub000/internal/infrastructure/database"
	"github.com/Pulth-Team/Pulth-sub000/internal/metrics"
	"github.com/Pulth-Team/Pulth-sub000/internal/usecase"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	pool, err := database.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("database connection established")

	if migrateOnStart {
		applied, err := database.ApplyMigrations(ctx, pool)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", zap.Strings("versions", applied))
	}

	var (
		threadCache domain.ThreadCache
		redisClient *redis.Client
	)
	if cfg.Redis.URL != "" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		threadCache = cache.NewRedisThreadCache(redisClient, cfg.Redis.ThreadTTL)
		logger.Info("thread cache enabled", zap.Duration("ttl", cfg.Redis.ThreadTTL))
	} else {
		logger.Info("thread cache disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	repo := database.NewPostgresRepository(pool)
	commentUseCase := usecase.NewCommentUseCase(repo, repo, threadCache, logger, m,
		usecase.WithMaxContentLength(cfg.Thread.MaxCommentLength),
	)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := httphandler.NewCommentHandler(commentUseCase, logger, cfg.Thread.MaxReplyDepth)
	router := httphandler.NewRouter(handler, logger, m, cfg.Server.CORSOrigins, func(ctx context.Context) error {
		if err := repo.Ping(ctx); err != nil {
			return err
		}
		if redisClient != nil {
			return redisClient.Ping(ctx).Err()
		}
		return nil
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		logger.Error("server error", zap.Error(err))
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server stopped")
	return nil
}
