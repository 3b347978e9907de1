package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-lesson-api/api/swagger"
	"github.com/noah-isme/sma-lesson-api/internal/handler"
	"github.com/noah-isme/sma-lesson-api/internal/middleware"
	"github.com/noah-isme/sma-lesson-api/internal/models"
	"github.com/noah-isme/sma-lesson-api/internal/repository"
	"github.com/noah-isme/sma-lesson-api/internal/service"
	"github.com/noah-isme/sma-lesson-api/migrations"
	"github.com/noah-isme/sma-lesson-api/pkg/cache"
	"github.com/noah-isme/sma-lesson-api/pkg/config"
	"github.com/noah-isme/sma-lesson-api/pkg/database"
	"github.com/noah-isme/sma-lesson-api/pkg/jobs"
	"github.com/noah-isme/sma-lesson-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-lesson-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-lesson-api/pkg/middleware/requestid"
)

// @title SMA Lesson Booking API
// @version 1.0.0
// @description Lesson bookings, recurring schedules and prepaid lesson packages
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer db.Close()

	if cfg.Migrations.Enabled {
		var source fs.FS = migrations.FS
		if cfg.Migrations.Dir != "" {
			source = os.DirFS(cfg.Migrations.Dir)
		}
		if err := database.Migrate(ctx, db.DB, source, "."); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
		if version, err := database.MigrationVersion(ctx, db.DB); err == nil {
			logr.Info("schema up to date", zap.Int64("version", version))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, booking cache disabled", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	bookingRepo := repository.NewBookingRepository(db)
	packageRepo := repository.NewPackageRepository(db)
	referenceRepo := repository.NewReferenceRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, cfg.Redis.KeyPrefix, logr)
	defer cacheRepo.Close() //nolint:errcheck

	txRunner := database.NewTxRunner(db, cfg.Booking.TxMaxRetries, cfg.Booking.TxRetryDelay, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Booking.CacheTTL, logr, cfg.Booking.CacheEnabled && redisClient != nil)

	var auditSvc *service.AuditService
	if cfg.Audit.Enabled {
		worker := service.NewAuditWorker(auditRepo, logr)
		queue := jobs.NewQueue[models.AuditLog]("audit", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Audit.Workers,
			BufferSize: cfg.Audit.BufferSize,
			MaxRetries: cfg.Audit.MaxRetries,
			Logger:     logr,
		})
		queue.Start(context.WithoutCancel(ctx))
		defer queue.Stop()
		auditSvc = service.NewAuditService(queue, logr)
	}

	bookingSvc := service.NewBookingService(bookingRepo, packageRepo, referenceRepo, txRunner, cacheSvc, auditSvc, metricsSvc, validate, logr, service.BookingServiceConfig{
		MaxOccurrences: cfg.Booking.MaxOccurrences,
		CacheTTL:       cfg.Booking.CacheTTL,
	})
	packageSvc := service.NewPackageService(packageRepo, referenceRepo, txRunner, auditSvc, validate, logr)
	exportSvc := service.NewExportService(bookingRepo, referenceRepo, logr)
	tokenSvc := service.NewTokenService(service.TokenConfig{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		Expiration: cfg.JWT.Expiration,
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), tokenSvc, handler.Handlers{
		Bookings: handler.NewBookingHandler(bookingSvc),
		Packages: handler.NewPackageHandler(packageSvc),
		Exports:  handler.NewExportHandler(exportSvc),
		Metrics:  metricsHandler,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
