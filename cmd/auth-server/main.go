package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campushub/auth-api/api/swagger"
	"github.com/campushub/auth-api/internal/handler"
	"github.com/campushub/auth-api/internal/middleware"
	"github.com/campushub/auth-api/internal/repository"
	"github.com/campushub/auth-api/internal/service"
	"github.com/campushub/auth-api/pkg/cache"
	"github.com/campushub/auth-api/pkg/config"
	"github.com/campushub/auth-api/pkg/database"
	"github.com/campushub/auth-api/pkg/jobs"
	"github.com/campushub/auth-api/pkg/logger"
	corsmiddleware "github.com/campushub/auth-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campushub/auth-api/pkg/middleware/requestid"
	"github.com/campushub/auth-api/pkg/storage"
)

// @title Campus Auth API
// @version 0.1.0
// @description Authentication and session lifecycle service
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	rdb, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer rdb.Close() //nolint:errcheck

	store, err := storage.NewLocalStorage(cfg.Export.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	blocklistRepo := repository.NewBlocklistRepository(rdb)

	metricsSvc := service.NewMetricsService()
	tokenSvc := service.NewTokenService(cfg.JWT)
	authSvc := service.NewAuthService(userRepo, tokenRepo, blocklistRepo, tokenSvc, validator.New(), metricsSvc, logr)

	signer := storage.NewDownloadSigner(cfg.JWT.Secret, cfg.Export.DownloadTTL)
	exportSvc := service.NewExportService(userRepo, store, signer, logr)

	authHandler := handler.NewAuthHandler(authSvc, handler.CookieSettings{
		Domain:        cfg.Cookie.Domain,
		Secure:        cfg.Cookie.Secure,
		AccessMaxAge:  int(cfg.JWT.AccessExpiry.Seconds()),
		RefreshMaxAge: int(cfg.JWT.RefreshExpiry.Seconds()),
		CSRFMaxAge:    int(cfg.Cookie.CSRFTTL.Seconds()),
	})
	adminHandler := handler.NewAdminHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, authHandler, adminHandler, authSvc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := jobs.NewScheduler(logr)
	mustRegister(scheduler, jobs.Task{
		Name:     "prune-expired-refresh-tokens",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			deleted, err := tokenRepo.DeleteExpired(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			if deleted > 0 {
				logr.Sugar().Infow("pruned expired refresh tokens", "deleted", deleted)
			}
			return nil
		},
	})
	mustRegister(scheduler, jobs.Task{
		Name:     "cleanup-audit-exports",
		Interval: 6 * time.Hour,
		Run: func(ctx context.Context) error {
			removed, err := store.CleanupOlderThan(cfg.Export.Retention)
			if err != nil {
				return err
			}
			if len(removed) > 0 {
				logr.Sugar().Infow("removed stale audit exports", "files", len(removed))
			}
			return nil
		},
	})
	scheduler.Start(ctx)
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}

func mustRegister(s *jobs.Scheduler, task jobs.Task) {
	if err := s.Register(task); err != nil {
		log.Fatalf("failed to register task %s: %v", task.Name, err)
	}
}
