package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/atelierworks/atelier-api/api/swagger"
	"github.com/atelierworks/atelier-api/internal/handler"
	"github.com/atelierworks/atelier-api/internal/middleware"
	"github.com/atelierworks/atelier-api/internal/repository"
	"github.com/atelierworks/atelier-api/internal/service"
	"github.com/atelierworks/atelier-api/pkg/cache"
	"github.com/atelierworks/atelier-api/pkg/config"
	"github.com/atelierworks/atelier-api/pkg/database"
	"github.com/atelierworks/atelier-api/pkg/export"
	"github.com/atelierworks/atelier-api/pkg/logger"
	corsmiddleware "github.com/atelierworks/atelier-api/pkg/middleware/cors"
	reqidmiddleware "github.com/atelierworks/atelier-api/pkg/middleware/requestid"
	"github.com/atelierworks/atelier-api/pkg/token"
)

// @title Atelier API
// @version 1.0.0
// @description Class occurrence resolution, enrollment and attendance engine
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API degrades to uncached reads when Redis is unreachable.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	scheduleRepo := repository.NewScheduleVersionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	rescheduleRepo := repository.NewRescheduleRepository(db)
	adhocRepo := repository.NewAdhocSessionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Occurrences.CacheTTL, logr, cfg.Occurrences.CacheEnabled && redisClient != nil)
	authSvc := service.NewAuthService(cfg.JWT.Secret)

	admissionSvc := service.NewAdmissionService(scheduleRepo, enrollmentRepo, rescheduleRepo, attendanceRepo, metricsSvc, logr)
	occurrenceSvc := service.NewOccurrenceService(scheduleRepo, enrollmentRepo, rescheduleRepo, adhocRepo, attendanceRepo, cacheSvc, metricsSvc, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, enrollmentRepo, cacheSvc, nil, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, admissionSvc, cacheSvc, nil, logr, repository.IsUniqueViolation)
	rescheduleSvc := service.NewRescheduleService(rescheduleRepo, enrollmentRepo, admissionSvc, cacheSvc, nil, logr, repository.IsUniqueViolation)
	adhocSvc := service.NewAdhocService(adhocRepo, attendanceRepo, admissionSvc, cacheSvc, nil, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, enrollmentRepo, cacheSvc, nil, logr)
	checkinSvc := service.NewCheckInService(
		attendanceRepo, enrollmentRepo, rescheduleRepo, scheduleRepo,
		token.NewCodec(cfg.CheckIn.TokenSecret),
		cfg.CheckIn.WindowLower, cfg.CheckIn.WindowUpper,
		cacheSvc, metricsSvc, logr,
	)
	exportSvc := service.NewExportService(occurrenceSvc, attendanceRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	occurrenceHandler := handler.NewOccurrenceHandler(occurrenceSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	rescheduleHandler := handler.NewRescheduleHandler(rescheduleSvc)
	adhocHandler := handler.NewAdhocHandler(adhocSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	checkinHandler := handler.NewCheckInHandler(checkinSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
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
	api.Use(middleware.JWT(authSvc))
	{
		api.GET("/professors/:id/occurrences", occurrenceHandler.ListForProfessor)
		api.GET("/students/:id/occurrences", occurrenceHandler.ListForStudent)

		api.GET("/professors/:id/schedules", scheduleHandler.List)
		api.GET("/professors/:id/schedules/current", scheduleHandler.Current)

		api.GET("/enrollments/:id", enrollmentHandler.Get)
		api.POST("/reschedules", rescheduleHandler.Create)
		api.DELETE("/enrollments/:id/reschedule", rescheduleHandler.Cancel)

		api.GET("/professors/:id/adhoc-sessions", adhocHandler.ListSessions)

		api.POST("/check-in", checkinHandler.CheckIn)

		staff := api.Group("")
		staff.Use(middleware.RequireStaff())
		{
			staff.POST("/schedules", scheduleHandler.Create)

			staff.POST("/enrollments", enrollmentHandler.Create)
			staff.PUT("/enrollments/:id/slots", enrollmentHandler.ChangeSlots)
			staff.DELETE("/enrollments/:id", enrollmentHandler.Cancel)

			staff.POST("/adhoc-sessions", adhocHandler.CreateSession)
			staff.POST("/adhoc-sessions/:id/participants", adhocHandler.RegisterParticipant)

			staff.GET("/attendance", attendanceHandler.List)
			staff.POST("/attendance", attendanceHandler.MarkOccurrence)
			staff.PUT("/attendance/:id", attendanceHandler.Mark)
			staff.DELETE("/attendance/:id", attendanceHandler.Remove)

			staff.POST("/check-in/tokens", checkinHandler.IssueToken)

			if cfg.Export.Enabled {
				staff.GET("/professors/:id/exports/roster", exportHandler.MonthRoster)
				staff.GET("/professors/:id/exports/attendance", exportHandler.AttendanceSheet)
			}
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
