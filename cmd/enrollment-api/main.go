package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/campusops/enrollment-api/api/swagger"
	"github.com/campusops/enrollment-api/internal/handler"
	"github.com/campusops/enrollment-api/internal/middleware"
	"github.com/campusops/enrollment-api/internal/repository"
	"github.com/campusops/enrollment-api/internal/service"
	"github.com/campusops/enrollment-api/pkg/cache"
	"github.com/campusops/enrollment-api/pkg/config"
	"github.com/campusops/enrollment-api/pkg/database"
	"github.com/campusops/enrollment-api/pkg/jobs"
	"github.com/campusops/enrollment-api/pkg/logger"
	corsmiddleware "github.com/campusops/enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusops/enrollment-api/pkg/middleware/requestid"
)

// @title Enrollment API
// @version 1.0.0
// @description University enrollment manager
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			repo := repository.NewCacheRepository(redisClient, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.StatsTTL, logr, cacheRepo != nil)

	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	studentSvc := service.NewStudentService(studentRepo, logr)
	courseSvc := service.NewCourseService(courseRepo, logr)
	enrollmentSvc := service.NewEnrollmentService(
		studentRepo, courseRepo, enrollmentRepo,
		cacheSvc, metricsSvc, logr,
		cfg.Cache.StatsTTL, cfg.Cache.ListingTTL,
	)
	termSvc := service.NewTermCloseService(enrollmentRepo, cacheSvc, logr, jobs.QueueConfig{
		Workers:    cfg.TermClose.Workers,
		MaxRetries: cfg.TermClose.MaxRetries,
		RetryDelay: cfg.TermClose.RetryDelay,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	termSvc.Start(ctx)
	defer termSvc.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/metrics", metricsHandler.Scrape)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	studentHandler := handler.NewStudentHandler(studentSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	termHandler := handler.NewTermHandler(termSvc)

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/students", studentHandler.Register)
		api.GET("/students", studentHandler.List)
		api.GET("/students/:code", studentHandler.Get)
		api.GET("/students/:code/enrollments", enrollmentHandler.StudentEnrollments)
		api.GET("/students/:code/available-courses", enrollmentHandler.AvailableCourses)

		api.POST("/courses", courseHandler.Create)
		api.GET("/courses", courseHandler.List)
		api.GET("/courses/:code", courseHandler.Get)
		api.GET("/courses/:code/roster", enrollmentHandler.Roster)

		api.POST("/enrollments", enrollmentHandler.Enroll)
		api.POST("/enrollments/cancel", enrollmentHandler.Cancel)
		api.GET("/statistics", enrollmentHandler.Statistics)

		api.POST("/terms/close", termHandler.Close)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
