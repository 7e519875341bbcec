package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/sekolahku/sekolahku-api/api/swagger"
	"github.com/sekolahku/sekolahku-api/internal/handler"
	"github.com/sekolahku/sekolahku-api/internal/middleware"
	"github.com/sekolahku/sekolahku-api/internal/models"
	"github.com/sekolahku/sekolahku-api/internal/repository"
	"github.com/sekolahku/sekolahku-api/internal/service"
	"github.com/sekolahku/sekolahku-api/pkg/cache"
	"github.com/sekolahku/sekolahku-api/pkg/config"
	"github.com/sekolahku/sekolahku-api/pkg/database"
	"github.com/sekolahku/sekolahku-api/pkg/logger"
	corsmiddleware "github.com/sekolahku/sekolahku-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sekolahku/sekolahku-api/pkg/middleware/requestid"
	"github.com/sekolahku/sekolahku-api/pkg/storage"
)

// @title SekolahKu API
// @version 1.0.0
// @description School administration API with enrollment approval workflow
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
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
			redisClient = nil
		}
	}

	uploads, err := storage.NewLocalStorage(cfg.Uploads.Dir)
	if err != nil {
		logr.Fatal("failed to init upload storage", zap.Error(err))
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	materialRepo := repository.NewMaterialRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "sekolahku-api",
	})
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, userRepo, redisClient, cfg.Cache.TTL, metricsSvc, validate, logr)
	teacherSvc := service.NewTeacherService(userRepo, validate, logr)
	userSvc := service.NewUserService(userRepo, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, validate, logr)
	materialSvc := service.NewMaterialService(materialRepo, uploads, cfg.Uploads.AllowedExtensions, validate, logr)
	exportSvc := service.NewExportService(enrollmentRepo, attendanceRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, exportSvc)
	studentHandler := handler.NewStudentHandler(userSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, exportSvc)
	materialHandler := handler.NewMaterialHandler(materialSvc, cfg.Uploads.MaxFileSizeBytes)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/enrollments", enrollmentHandler.Submit)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/change-password", authHandler.ChangePassword)
	authed.GET("/auth/me", authHandler.Me)

	staff := authed.Group("")
	staff.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher))

	staff.GET("/students", studentHandler.List)
	staff.GET("/attendance/export", attendanceHandler.Export)

	admin := authed.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))

	admin.GET("/enrollments", enrollmentHandler.List)
	admin.GET("/enrollments/export", enrollmentHandler.Export)
	admin.GET("/enrollments/:id", enrollmentHandler.Get)
	admin.PUT("/enrollments/:id", enrollmentHandler.Update)
	admin.DELETE("/enrollments/:id", enrollmentHandler.Delete)
	admin.POST("/enrollments/:id/approve", enrollmentHandler.Approve)

	admin.GET("/teachers", teacherHandler.List)
	admin.POST("/teachers", teacherHandler.Create)
	admin.PUT("/teachers/:id", teacherHandler.Update)
	admin.DELETE("/teachers/:id", teacherHandler.Delete)

	students := authed.Group("")
	students.Use(middleware.RequireRoles(models.RoleStudent))

	students.POST("/attendance", attendanceHandler.Submit)
	students.GET("/attendance/today", attendanceHandler.Today)

	authed.GET("/attendance", attendanceHandler.Records)

	authed.GET("/materials", materialHandler.List)
	authed.GET("/materials/:id/download", materialHandler.Download)

	uploaders := authed.Group("")
	uploaders.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher))
	uploaders.POST("/materials", materialHandler.Upload)
	uploaders.DELETE("/materials/:id", materialHandler.Delete)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}
