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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/timetab-app/timetab-api/api/swagger"
	"github.com/timetab-app/timetab-api/internal/handler"
	internalmiddleware "github.com/timetab-app/timetab-api/internal/middleware"
	"github.com/timetab-app/timetab-api/internal/repository"
	"github.com/timetab-app/timetab-api/internal/service"
	"github.com/timetab-app/timetab-api/pkg/cache"
	"github.com/timetab-app/timetab-api/pkg/config"
	"github.com/timetab-app/timetab-api/pkg/database"
	"github.com/timetab-app/timetab-api/pkg/jobs"
	"github.com/timetab-app/timetab-api/pkg/logger"
	corsmiddleware "github.com/timetab-app/timetab-api/pkg/middleware/cors"
	reqidmiddleware "github.com/timetab-app/timetab-api/pkg/middleware/requestid"
	"github.com/timetab-app/timetab-api/pkg/storage"
)

// @title Timetab API
// @version 1.0.0
// @description Multi-institution academic timetabling service
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Snapshot.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, snapshot cache disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	institutionRepo := repository.NewInstitutionRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	timeSlotRepo := repository.NewTimeSlotRepository(db)
	classGroupRepo := repository.NewClassGroupRepository(db)
	streamRepo := repository.NewStreamRepository(db)
	studyGroupRepo := repository.NewStudyGroupRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	demandRepo := repository.NewDemandRepository(db)
	constraintRepo := repository.NewConstraintRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)

	// Services.
	metricsSvc := service.NewMetricsService()
	snapshotLoader := service.NewSnapshotLoader(
		lessonRepo, teacherRepo, roomRepo, timeSlotRepo,
		classGroupRepo, studyGroupRepo, demandRepo, constraintRepo,
		redisClient, cfg.Snapshot, logr,
	)
	authSvc := service.NewAuthService(userRepo, validate, logr, cfg.JWT)
	institutionSvc := service.NewInstitutionService(institutionRepo, validate, logr)
	lessonSvc := service.NewLessonService(lessonRepo, snapshotLoader, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, lessonRepo, snapshotLoader, validate, logr)
	roomSvc := service.NewRoomService(roomRepo, snapshotLoader, validate, logr)
	timeSlotSvc := service.NewTimeSlotService(timeSlotRepo, snapshotLoader, validate, logr)
	groupSvc := service.NewGroupService(classGroupRepo, streamRepo, studyGroupRepo, studentRepo, snapshotLoader, validate, logr)
	demandSvc := service.NewDemandService(demandRepo, lessonRepo, classGroupRepo, studyGroupRepo, snapshotLoader, validate, logr)
	constraintSvc := service.NewConstraintService(constraintRepo, snapshotLoader, validate, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, snapshotLoader, validate, logr)
	generatorSvc := service.NewGeneratorService(scheduleRepo, snapshotLoader, metricsSvc, cfg.Generator, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportSvc *service.ExportService
	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(exportJobRepo, scheduleSvc, fileStore, signer, metricsSvc, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr)
		exportQueue = jobs.NewQueue("exports", exportSvc.Process, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportSvc.SetQueue(exportQueue)
		exportQueue.Start(ctx)
		if err := exportSvc.RecoverQueued(ctx, 100); err != nil {
			logr.Sugar().Warnw("failed to recover queued exports", "error", err)
		}
		go runExportCleanup(ctx, exportSvc, logr)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	institutionHandler := handler.NewInstitutionHandler(institutionSvc)
	lessonHandler := handler.NewLessonHandler(lessonSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	roomHandler := handler.NewRoomHandler(roomSvc)
	timeSlotHandler := handler.NewTimeSlotHandler(timeSlotSvc)
	groupHandler := handler.NewGroupHandler(groupSvc)
	demandHandler := handler.NewDemandHandler(demandSvc)
	constraintHandler := handler.NewConstraintHandler(constraintSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc, generatorSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.GET("/me", internalmiddleware.JWT(authSvc), authHandler.Me)

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		api.GET("/export/:token", exportHandler.Download)
	}

	institutions := api.Group("/institutions", internalmiddleware.JWT(authSvc))
	institutions.GET("", institutionHandler.List)
	institutions.POST("", institutionHandler.Create)
	institutions.GET("/:institutionID", institutionHandler.Get)
	institutions.PUT("/:institutionID", institutionHandler.Update)
	institutions.DELETE("/:institutionID", institutionHandler.Delete)

	scoped := institutions.Group("/:institutionID", internalmiddleware.InstitutionAccess(institutionSvc))

	lessons := scoped.Group("/lessons")
	lessons.GET("", lessonHandler.List)
	lessons.POST("", lessonHandler.Create)
	lessons.GET("/:id", lessonHandler.Get)
	lessons.PUT("/:id", lessonHandler.Update)
	lessons.DELETE("/:id", lessonHandler.Delete)

	teachers := scoped.Group("/teachers")
	teachers.GET("", teacherHandler.List)
	teachers.POST("", teacherHandler.Create)
	teachers.GET("/:id", teacherHandler.Get)
	teachers.PUT("/:id", teacherHandler.Update)
	teachers.DELETE("/:id", teacherHandler.Delete)
	teachers.GET("/:id/qualifications", teacherHandler.Qualifications)
	teachers.PUT("/:id/qualifications", teacherHandler.SetQualifications)

	rooms := scoped.Group("/rooms")
	rooms.GET("", roomHandler.List)
	rooms.POST("", roomHandler.Create)
	rooms.GET("/:id", roomHandler.Get)
	rooms.PUT("/:id", roomHandler.Update)
	rooms.DELETE("/:id", roomHandler.Delete)

	timeSlots := scoped.Group("/time-slots")
	timeSlots.GET("", timeSlotHandler.List)
	timeSlots.POST("", timeSlotHandler.Create)
	timeSlots.GET("/:id", timeSlotHandler.Get)
	timeSlots.PUT("/:id", timeSlotHandler.Update)
	timeSlots.DELETE("/:id", timeSlotHandler.Delete)

	classGroups := scoped.Group("/class-groups")
	classGroups.GET("", groupHandler.ListClassGroups)
	classGroups.POST("", groupHandler.CreateClassGroup)
	classGroups.GET("/:id", groupHandler.GetClassGroup)
	classGroups.PUT("/:id", groupHandler.UpdateClassGroup)
	classGroups.DELETE("/:id", groupHandler.DeleteClassGroup)
	classGroups.GET("/:id/students", groupHandler.ListStudents)

	streams := scoped.Group("/streams")
	streams.GET("", groupHandler.ListStreams)
	streams.POST("", groupHandler.CreateStream)
	streams.PUT("/:id/class-groups", groupHandler.SetStreamClassGroups)
	streams.DELETE("/:id", groupHandler.DeleteStream)

	studyGroups := scoped.Group("/study-groups")
	studyGroups.GET("", groupHandler.ListStudyGroups)
	studyGroups.POST("", groupHandler.CreateStudyGroup)
	studyGroups.PUT("/:id/members", groupHandler.SetStudyGroupMembers)
	studyGroups.DELETE("/:id", groupHandler.DeleteStudyGroup)

	students := scoped.Group("/students")
	students.POST("", groupHandler.CreateStudent)
	students.DELETE("/:id", groupHandler.DeleteStudent)

	demands := scoped.Group("/demands")
	demands.GET("", demandHandler.List)
	demands.POST("", demandHandler.Create)
	demands.GET("/:id", demandHandler.Get)
	demands.PUT("/:id", demandHandler.Update)
	demands.DELETE("/:id", demandHandler.Delete)

	constraints := scoped.Group("/constraints")
	constraints.GET("", constraintHandler.List)
	constraints.POST("", constraintHandler.Create)
	constraints.GET("/:id", constraintHandler.Get)
	constraints.PUT("/:id", constraintHandler.Update)
	constraints.DELETE("/:id", constraintHandler.Delete)

	schedules := scoped.Group("/schedules")
	schedules.GET("", scheduleHandler.List)
	schedules.POST("", scheduleHandler.Create)
	schedules.GET("/:id", scheduleHandler.Get)
	schedules.PUT("/:id", scheduleHandler.Update)
	schedules.DELETE("/:id", scheduleHandler.Delete)
	schedules.POST("/:id/generate", scheduleHandler.Generate)
	if exportSvc != nil {
		schedules.POST("/:id/export", scheduleHandler.Export)
		scoped.GET("/exports/:jobID", scheduleHandler.ExportStatus)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	if exportQueue != nil {
		exportQueue.Stop()
	}
}

// runExportCleanup periodically removes expired export artifacts.
func runExportCleanup(ctx context.Context, exports *service.ExportService, logr *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := exports.Cleanup(ctx); err != nil {
				logr.Sugar().Warnw("export cleanup failed", "error", err)
			}
		}
	}
}
