package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/timetable-api/api/swagger"
	"github.com/noah-isme/timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/repository"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/cache"
	"github.com/noah-isme/timetable-api/pkg/config"
	"github.com/noah-isme/timetable-api/pkg/database"
	"github.com/noah-isme/timetable-api/pkg/events"
	"github.com/noah-isme/timetable-api/pkg/jobs"
	"github.com/noah-isme/timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/requestid"
	"github.com/noah-isme/timetable-api/pkg/ratelimit"
)

const shutdownTimeout = 10 * time.Second

// @title Timetable API
// @version 1.0.0
// @description Conflict-free weekly schedule generation over the university course catalog
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Sugar().Fatalw("failed to migrate catalog schema", "error", err)
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, catalog cache disabled and rate limiting kept in memory", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	metricsSvc := service.NewMetricsService()
	catalogRepo := repository.NewCatalogRepository(db)
	termRepo := repository.NewTermRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "timetable:", logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled && redisClient != nil)
	if cfg.Database.AutoMigrate {
		// migrated schema may change the browse payloads
		_ = cacheSvc.Invalidate(ctx, "*")
	}
	tokenSvc := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	generatorSvc := service.NewScheduleGeneratorService(catalogRepo, service.NewValidator(), metricsSvc, logr, service.ScheduleGeneratorConfig{
		MaxCandidates:     cfg.Scheduler.MaxCandidates,
		SearchTimeout:     cfg.Scheduler.SearchTimeout,
		Workers:           cfg.Scheduler.Workers,
		ParallelThreshold: cfg.Scheduler.ParallelThreshold,
	})
	exportSvc, err := service.NewExportService(generatorSvc, service.ExportConfig{
		SlotTimes: cfg.Scheduler.SlotTimes,
		TermWeeks: cfg.Scheduler.TermWeeks,
	}, logr)
	if err != nil {
		logr.Sugar().Fatalw("invalid export configuration", "error", err)
	}
	termSvc := service.NewTermService(termRepo, catalogRepo, cacheSvc, metricsSvc, logr)

	if cfg.Events.Enabled {
		publisher := events.NewAMQPPublisher(cfg.Events.RabbitMQURL, cfg.Events.Queue, logr)
		defer publisher.Close() //nolint:errcheck
		eventQueue := jobs.NewQueue("schedule-events", events.QueueHandler(publisher, metricsSvc.ObserveEvent), jobs.QueueConfig{
			Workers:    cfg.Events.Workers,
			MaxRetries: cfg.Events.Retries,
			Logger:     logr,
		})
		eventQueue.Start(context.Background())
		defer eventQueue.Stop()
		generatorSvc.WithEvents(eventQueue)
	}

	generalLimiter, generateLimiter := buildLimiters(ctx, cfg.RateLimit, redisClient, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	deps := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, deps)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(tokenSvc))
	api.Use(internalmiddleware.RequireRoles(models.RoleStudent, models.RoleAdmin, models.RoleSuperAdmin))
	api.Use(internalmiddleware.RateLimit("general", generalLimiter, metricsSvc, logr))

	termHandler := handler.NewTermHandler(termSvc)
	terms := api.Group("/terms", internalmiddleware.WithResponseMeta())
	terms.GET("", termHandler.List)
	terms.GET("/:token/catalog", termHandler.Catalog)

	if cfg.Scheduler.Enabled {
		scheduleHandler := handler.NewScheduleGeneratorHandler(generatorSvc, exportSvc)
		schedules := api.Group("/schedules", internalmiddleware.RateLimit("generate", generateLimiter, metricsSvc, logr))
		schedules.POST("/generate", scheduleHandler.Generate)
		schedules.POST("/generate/other", scheduleHandler.GenerateOther)
		schedules.POST("/export", scheduleHandler.Export)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Scheduler.SearchTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
}

// buildLimiters returns the general and generation limiters. Redis backs them when
// configured and reachable; otherwise in-process buckets are used and swept until ctx ends.
func buildLimiters(ctx context.Context, cfg config.RateLimitConfig, client *redis.Client, logr *zap.Logger) (ratelimit.Limiter, ratelimit.Limiter) {
	if !cfg.Enabled {
		return nil, nil
	}
	general := ratelimit.Config{Capacity: cfg.General.Capacity, Refill: cfg.General.Refill}
	generate := ratelimit.Config{Capacity: cfg.Generate.Capacity, Refill: cfg.Generate.Refill}

	if cfg.Backend == "redis" {
		if client != nil {
			return ratelimit.NewRedisLimiter(client, "timetable:rl:", general),
				ratelimit.NewRedisLimiter(client, "timetable:rl:", generate)
		}
		logr.Warn("redis rate limit backend requested but redis is unavailable, using memory")
	}

	opts := ratelimit.MemoryOptions{IdleTTL: cfg.IdleTTL, CleanupInterval: cfg.CleanupInterval, Logger: logr}
	generalMem := ratelimit.NewMemoryLimiter(general, opts)
	generateMem := ratelimit.NewMemoryLimiter(generate, opts)
	generalMem.Start(ctx)
	generateMem.Start(ctx)
	return generalMem, generateMem
}
