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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/tclass-api/api/swagger"
	"github.com/noah-isme/tclass-api/internal/handler"
	internalmiddleware "github.com/noah-isme/tclass-api/internal/middleware"
	"github.com/noah-isme/tclass-api/internal/repository"
	"github.com/noah-isme/tclass-api/internal/service"
	"github.com/noah-isme/tclass-api/pkg/cache"
	"github.com/noah-isme/tclass-api/pkg/config"
	"github.com/noah-isme/tclass-api/pkg/database"
	"github.com/noah-isme/tclass-api/pkg/export"
	"github.com/noah-isme/tclass-api/pkg/jobs"
	"github.com/noah-isme/tclass-api/pkg/logger"
	"github.com/noah-isme/tclass-api/pkg/mail"
	corsmiddleware "github.com/noah-isme/tclass-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tclass-api/pkg/middleware/requestid"
	"github.com/noah-isme/tclass-api/pkg/storage"
)

// @title TClass API
// @version 1.0.0
// @description Learning management backend for TClass programs, courses, enrollments and grading.
// @BasePath /api
// @schemes http https
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	app, err := buildApp(ctx, cfg, db, redisClient, logr)
	if err != nil {
		logr.Fatal("failed to build application", zap.Error(err))
	}
	defer app.shutdown()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(app.metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", app.handlers.Metrics.Health)
	r.GET("/ready", app.handlers.Metrics.Ready)
	r.GET("/metrics", app.handlers.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), app.handlers, handler.RouteConfig{
		AuthRequired: internalmiddleware.JWT(app.auth),
		AuthOptional: internalmiddleware.OptionalJWT(app.auth),
		Audit:        app.audit,
		Logger:       logr,
	})

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
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type application struct {
	handlers handler.Handlers
	auth     *service.AuthService
	audit    *repository.UserRepository
	metrics  *service.MetricsService
	queue    *jobs.Queue
}

func (a *application) shutdown() {
	if a.queue != nil {
		a.queue.Stop()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (*application, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	attachments, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("init attachment storage: %w", err)
	}
	certificates, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("init certificate storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	programRepo := repository.NewProgramRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled && cacheRepo != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	departmentSvc := service.NewDepartmentService(departmentRepo, userRepo, validate, logr)
	programSvc := service.NewProgramService(programRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, programRepo, userRepo, validate, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, courseRepo, enrollmentRepo, validate, logr)

	app := &application{auth: authSvc, audit: userRepo, metrics: metrics}

	var certificateJobs interface{ Enqueue(jobs.Job) error }
	if cfg.Certificates.Enabled {
		worker := service.NewCertificateWorker(enrollmentRepo, export.NewCertificateRenderer(), certificates, mail.NewSender(cfg.Mail, logr), cfg.Mail.FromName, logr)
		app.queue = jobs.NewQueue("certificates", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Certificates.WorkerConcurrency,
			MaxRetries: cfg.Certificates.WorkerRetries,
			Logger:     logr,
		})
		app.queue.Start(ctx)
		certificateJobs = app.queue
	}

	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, userRepo, programRepo, certificateJobs, cacheSvc, metrics, signer, certificates, validate, logr, service.EnrollmentConfig{
		DefaultPassword: cfg.Enrollment.DefaultPassword,
		CORMaxAttempts:  cfg.Enrollment.CORMaxAttempts,
	})
	submissionSvc := service.NewSubmissionService(service.SubmissionServiceParams{
		Repo:        submissionRepo,
		Assignments: assignmentRepo,
		Courses:     courseRepo,
		Enrollments: enrollmentRepo,
		Files:       attachments,
		Signer:      signer,
		Cache:       cacheSvc,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
		Config: service.SubmissionConfig{
			MaxFileSize:  cfg.Uploads.MaxFileSizeBytes,
			AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
		},
	})
	gradeSvc := service.NewGradeService(service.GradeServiceParams{
		Repo:        gradeRepo,
		Assignments: assignmentRepo,
		Courses:     courseRepo,
		Enrollments: enrollmentRepo,
		Submissions: submissionRepo,
		Cache:       cacheSvc,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
	})
	announcementSvc := service.NewAnnouncementService(announcementRepo, cacheSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Repo:          dashboardRepo,
		Assignments:   assignmentRepo,
		Grades:        gradeRepo,
		Submissions:   submissionRepo,
		Enrollments:   enrollmentRepo,
		Announcements: announcementRepo,
		Cache:         cacheSvc,
		Metrics:       metrics,
		Logger:        logr,
		Config:        service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = cache.Check(redisClient)
	}

	app.handlers = handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Users:         handler.NewUserHandler(userSvc),
		Departments:   handler.NewDepartmentHandler(departmentSvc),
		Programs:      handler.NewProgramHandler(programSvc),
		Courses:       handler.NewCourseHandler(courseSvc),
		Enrollments:   handler.NewEnrollmentHandler(enrollmentSvc),
		Assignments:   handler.NewAssignmentHandler(assignmentSvc),
		Submissions:   handler.NewSubmissionHandler(submissionSvc),
		Grades:        handler.NewGradeHandler(gradeSvc),
		Reports:       handler.NewReportHandler(gradeSvc),
		Announcements: handler.NewAnnouncementHandler(announcementSvc),
		Dashboard:     handler.NewDashboardHandler(dashboardSvc),
		Files:         handler.NewFileHandler(signer, attachments, certificates),
		Metrics:       handler.NewMetricsHandler(metrics, checks),
	}
	return app, nil
}
