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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/aulago/aula-api/api/swagger"
	"github.com/aulago/aula-api/internal/handler"
	"github.com/aulago/aula-api/internal/middleware"
	"github.com/aulago/aula-api/internal/models"
	"github.com/aulago/aula-api/internal/repository"
	"github.com/aulago/aula-api/internal/service"
	"github.com/aulago/aula-api/pkg/cache"
	"github.com/aulago/aula-api/pkg/config"
	"github.com/aulago/aula-api/pkg/database"
	"github.com/aulago/aula-api/pkg/jobs"
	"github.com/aulago/aula-api/pkg/logger"
	corsmiddleware "github.com/aulago/aula-api/pkg/middleware/cors"
	reqidmiddleware "github.com/aulago/aula-api/pkg/middleware/requestid"
	"github.com/aulago/aula-api/pkg/storage"
)

// @title Aula Reporting API
// @version 1.0.0
// @description Attendance, task and performance reporting for teachers.
// @BasePath /api
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Reports.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheService := service.NewCacheService(cacheRepo, metrics, cfg.Reports.CacheTTL, logr, cfg.Reports.CacheEnabled)

	groupRepo := repository.NewGroupRepository(db)
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)

	validate := validator.New()
	tokens := service.NewTokenService(cfg.JWT.Secret, logr)

	attendanceReports := service.NewAttendanceReportService(groupRepo, attendanceRepo, cacheService, metrics, logr, cfg.Reports.Timezone)
	taskReports := service.NewTaskReportService(groupRepo, taskRepo, metrics, logr, cfg.Reports.Timezone)
	performanceReports := service.NewPerformanceReportService(groupRepo, taskRepo, attendanceRepo, cacheService, metrics, logr, cfg.Reports.Timezone)

	groupService := service.NewGroupService(groupRepo, userRepo, cacheService, validate, logr)
	taskService := service.NewTaskService(taskRepo, cacheService, validate, logr)
	attendanceService := service.NewAttendanceService(attendanceRepo, groupRepo, cacheService, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportService *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportService = service.NewExportService(
			exportJobRepo, attendanceReports, taskReports, performanceReports,
			store, signer,
			jobs.Options{
				Workers:    cfg.Exports.WorkerConcurrency,
				MaxRetries: cfg.Exports.WorkerRetries,
				Logger:     logr,
			},
			logr,
		)
		exportService.Start(ctx)
		defer exportService.Stop()
	}

	reportHandler := handler.NewReportHandler(attendanceReports, taskReports, performanceReports)
	groupHandler := handler.NewGroupHandler(groupService)
	taskHandler := handler.NewTaskHandler(taskService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

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
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokens))

	reports := api.Group("/reports", middleware.RequireRoles(models.RoleTeacher), middleware.GroupOwner(groupRepo))
	reports.GET("/attendance", reportHandler.Attendance)
	reports.GET("/tasks", reportHandler.Tasks)
	reports.GET("/performance", reportHandler.Performance)

	groups := api.Group("/groups", middleware.RequireRoles(models.RoleTeacher))
	groups.POST("", groupHandler.Create)
	groups.GET("", groupHandler.List)
	owned := groups.Group("/:id", middleware.GroupOwner(groupRepo))
	owned.GET("", groupHandler.Get)
	owned.PATCH("/archive", groupHandler.Archive)
	owned.GET("/roster", groupHandler.Roster)
	owned.POST("/members", groupHandler.AddMember)
	owned.DELETE("/members/:studentId", groupHandler.RemoveMember)
	owned.POST("/attendance", attendanceHandler.Record)
	owned.GET("/attendance", attendanceHandler.GetByDate)

	tasks := api.Group("/tasks")
	tasks.GET("", middleware.RequireRoles(models.RoleTeacher), taskHandler.List)
	tasks.GET("/:id", taskHandler.Get)
	tasks.POST("/:id/submissions", middleware.RequireRoles(models.RoleStudent), taskHandler.Submit)
	tasks.PATCH("/:id/submissions/:studentId", middleware.RequireRoles(models.RoleTeacher), taskHandler.Review)
	tasks.PATCH("/:id/due-date", middleware.RequireRoles(models.RoleTeacher), taskHandler.ExtendDueDate)
	tasks.POST("/close-expired", middleware.RequireRoles(models.RoleTeacher), taskHandler.CloseExpired)

	if exportService != nil {
		exportHandler := handler.NewExportHandler(exportService)
		exports := api.Group("/exports", middleware.RequireRoles(models.RoleTeacher))
		exports.POST("", exportHandler.Create)
		exports.GET("/:id", exportHandler.Status)
		// Downloads authenticate through the signed token instead of a JWT.
		r.GET("/exports/download", exportHandler.Download)
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

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
