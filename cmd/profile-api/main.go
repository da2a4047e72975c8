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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/vidyalayaone/profile-api/api/swagger"
	"github.com/vidyalayaone/profile-api/internal/client"
	"github.com/vidyalayaone/profile-api/internal/handler"
	"github.com/vidyalayaone/profile-api/internal/middleware"
	"github.com/vidyalayaone/profile-api/internal/models"
	"github.com/vidyalayaone/profile-api/internal/repository"
	"github.com/vidyalayaone/profile-api/internal/service"
	"github.com/vidyalayaone/profile-api/pkg/cache"
	"github.com/vidyalayaone/profile-api/pkg/config"
	"github.com/vidyalayaone/profile-api/pkg/database"
	"github.com/vidyalayaone/profile-api/pkg/logger"
	"github.com/vidyalayaone/profile-api/pkg/mailer"
	corsmiddleware "github.com/vidyalayaone/profile-api/pkg/middleware/cors"
	reqidmiddleware "github.com/vidyalayaone/profile-api/pkg/middleware/requestid"
	"github.com/vidyalayaone/profile-api/pkg/storage"
)

// @title Profile API
// @version 0.1.0
// @description Student profile service with cross-service account provisioning
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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
	}

	files, err := storage.New(cfg.Storage)
	if err != nil {
		logr.Sugar().Fatalw("failed to init storage", "error", err)
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	notifications := service.NewNotificationService(mailer.NewSMTP(cfg.SMTP), cfg.Notifications, logr, metricsSvc)
	notifications.Start(context.Background())
	defer notifications.Stop()

	identities := client.NewIdentityClient(cfg.AuthClient, logr)

	studentRepo := repository.NewStudentRepository(db)
	provisionRepo := repository.NewProvisionRepository(db)

	var studentCache service.StudentCache
	if cacheRepo != nil {
		studentCache = cacheRepo
	}
	studentSvc := service.NewStudentService(studentRepo, studentCache, files, validate, logr, metricsSvc, cfg.Cache.TTL)
	provisionSvc := service.NewProvisionService(identities, provisionRepo, studentRepo, notifications, validate, logr, metricsSvc)

	studentHandler := handler.NewStudentHandler(studentSvc, provisionSvc)
	documentHandler := handler.NewDocumentHandler(studentSvc)

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
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))

	students := api.Group("/students")
	{
		staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher)
		admin := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

		students.GET("", staff, studentHandler.List)
		// Students pass role RBAC here; the handler narrows them to the
		// record owning their user id.
		students.GET("/:id", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher, models.RoleStudent), studentHandler.Get)
		students.POST("", admin, studentHandler.Create)
		students.POST("/:id/accept", admin, studentHandler.Accept)
		students.PUT("/:id", admin, studentHandler.Update)
		students.DELETE("/:id", admin, studentHandler.Delete)
		students.POST("/:id/documents", admin, documentHandler.Upload)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
}
