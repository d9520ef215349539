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
	"go.uber.org/zap"

	_ "github.com/noah-isme/school-portal-api/api/swagger"
	"github.com/noah-isme/school-portal-api/internal/handler"
	"github.com/noah-isme/school-portal-api/internal/middleware"
	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/repository"
	"github.com/noah-isme/school-portal-api/internal/service"
	"github.com/noah-isme/school-portal-api/pkg/cache"
	"github.com/noah-isme/school-portal-api/pkg/config"
	"github.com/noah-isme/school-portal-api/pkg/database"
	"github.com/noah-isme/school-portal-api/pkg/export"
	"github.com/noah-isme/school-portal-api/pkg/jobs"
	"github.com/noah-isme/school-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/school-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/school-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/school-portal-api/pkg/storage"
)

// @title School Portal API
// @version 1.0.0
// @description Grade ledger, attendance ledger and derived result summaries
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, summary cache disabled", zap.Error(err))
		redisClient = nil
	}

	uploadsStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Fatal("failed to init uploads storage", zap.Error(err))
	}
	reportsStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Fatal("failed to init reports storage", zap.Error(err))
	}
	uploadSigner := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	reportSigner := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	validate := validator.New()
	if err := service.RegisterAttendanceValidators(validate); err != nil {
		logr.Fatal("failed to register validators", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	classRepo := repository.NewClassRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Summary.CacheTTL, logr, redisClient != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:             cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, classRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, userRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, userRepo, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, studentRepo, subjectRepo, cacheSvc, metricsSvc, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, classRepo, studentRepo, cacheSvc, metricsSvc, validate, logr)
	resultSvc := service.NewResultService(studentRepo, gradeRepo, attendanceRepo, cacheSvc, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, submissionRepo, classRepo, subjectRepo, studentRepo, uploadsStore, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, validate, logr)
	messageSvc := service.NewMessageService(messageRepo, userRepo, validate, logr)
	calendarSvc := service.NewCalendarService(calendarRepo, validate, logr)
	resourceSvc := service.NewResourceService(resourceRepo, classRepo, subjectRepo, uploadsStore, uploadSigner, validate, logr)
	exportSvc := service.NewExportService(gradeRepo, subjectRepo, export.NewCSVExporter(), logr)

	reportWorker := service.NewReportWorker(reportRepo, studentRepo, resultSvc, export.NewPDFExporter(), reportsStore, metricsSvc, logr)
	reportQueue := jobs.NewQueue("report-cards", reportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportSvc := service.NewReportService(reportRepo, studentRepo, reportQueue, reportSigner, metricsSvc, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reportQueue.Start(ctx)
	defer reportQueue.Stop()

	go cleanupReports(ctx, reportsStore, cfg.Reports.CleanupInterval, cfg.Reports.SignedURLTTL, logr)

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

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	classHandler := handler.NewClassHandler(classSvc)
	gradeHandler := handler.NewGradeHandler(gradeSvc, exportSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	resultHandler := handler.NewResultHandler(resultSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc, cfg.Uploads.MaxFileSizeBytes)
	announcementHandler := handler.NewAnnouncementHandler(announcementSvc)
	messageHandler := handler.NewMessageHandler(messageSvc)
	calendarHandler := handler.NewCalendarHandler(calendarSvc)
	resourceHandler := handler.NewResourceHandler(resourceSvc, cfg.Uploads.MaxFileSizeBytes)
	reportHandler := handler.NewReportHandler(reportSvc)
	fileHandler := handler.NewFileHandler(uploadsStore, uploadSigner, reportsStore, reportSigner)

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	// Signed tokens are the credential on file routes.
	api.GET("/files/uploads", fileHandler.ServeUpload)
	api.GET("/files/reports", fileHandler.ServeReport)

	protected := api.Group("", middleware.JWT(authSvc))

	protected.POST("/auth/logout", authHandler.Logout)
	protected.PUT("/auth/password", authHandler.ChangePassword)
	protected.GET("/auth/me", authHandler.Me)

	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleStudent)

	users := protected.Group("/users")
	{
		users.GET("", admin, userHandler.List)
		// Users can read their own account; everything else is admin-only.
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
		users.POST("", admin, userHandler.Create)
		users.PUT("/:id", admin, userHandler.Update)
	}

	students := protected.Group("/students")
	{
		students.GET("", staff, studentHandler.List)
		students.GET("/:id", anyRole, studentHandler.Get)
		students.POST("", admin, studentHandler.Create)
		students.PUT("/:id", admin, studentHandler.Update)
		students.DELETE("/:id", admin, studentHandler.Deactivate)
		students.GET("/:id/results/grades", anyRole, resultHandler.GradeSummary)
		students.GET("/:id/results/attendance", anyRole, resultHandler.AttendanceSummary)
		students.GET("/:id/reports", staff, reportHandler.ListByStudent)
	}

	subjects := protected.Group("/subjects")
	{
		subjects.GET("", anyRole, subjectHandler.List)
		subjects.GET("/:id", anyRole, subjectHandler.Get)
		subjects.POST("", admin, subjectHandler.Create)
		subjects.PUT("/:id", admin, subjectHandler.Update)
		subjects.PUT("/:id/teachers", admin, subjectHandler.AssignTeachers)
		subjects.DELETE("/:id", admin, subjectHandler.Delete)
	}

	classes := protected.Group("/classes")
	{
		classes.GET("", anyRole, classHandler.List)
		classes.GET("/:id", anyRole, classHandler.Get)
		classes.POST("", admin, classHandler.Create)
		classes.PUT("/:id", admin, classHandler.Update)
		classes.DELETE("/:id", admin, classHandler.Delete)
	}

	grades := protected.Group("/grades", staff)
	{
		grades.GET("", gradeHandler.List)
		grades.POST("/batch", gradeHandler.Batch)
		grades.GET("/export", gradeHandler.ExportSheet)
	}

	attendance := protected.Group("/attendance", staff)
	{
		attendance.GET("", attendanceHandler.List)
		attendance.GET("/classes/:id", attendanceHandler.ClassOnDate)
		attendance.POST("/batch", attendanceHandler.Batch)
	}

	assignments := protected.Group("/assignments")
	{
		assignments.GET("", anyRole, assignmentHandler.List)
		assignments.GET("/:id", anyRole, assignmentHandler.Get)
		assignments.POST("", staff, assignmentHandler.Create)
		assignments.PUT("/:id", staff, assignmentHandler.Update)
		assignments.DELETE("/:id", staff, assignmentHandler.Delete)
		assignments.POST("/:id/submissions", anyRole, assignmentHandler.Submit)
		assignments.GET("/:id/submissions", staff, assignmentHandler.Submissions)
		assignments.PUT("/:id/submissions/:studentId", staff, assignmentHandler.GradeSubmission)
	}

	announcements := protected.Group("/announcements")
	{
		announcements.GET("", anyRole, announcementHandler.List)
		announcements.POST("", staff, announcementHandler.Create)
		announcements.PUT("/:id", staff, announcementHandler.Update)
		announcements.DELETE("/:id", staff, announcementHandler.Delete)
	}

	messages := protected.Group("/messages", anyRole)
	{
		messages.POST("", messageHandler.Send)
		messages.GET("/inbox", messageHandler.Inbox)
		messages.GET("/sent", messageHandler.Sent)
		messages.GET("/unread", messageHandler.UnreadCount)
		messages.PUT("/:id/read", messageHandler.MarkRead)
	}

	calendar := protected.Group("/calendar")
	{
		calendar.GET("", anyRole, calendarHandler.List)
		calendar.POST("", staff, calendarHandler.Create)
		calendar.PUT("/:id", staff, calendarHandler.Update)
		calendar.DELETE("/:id", staff, calendarHandler.Delete)
	}

	resources := protected.Group("/resources")
	{
		resources.GET("", anyRole, resourceHandler.List)
		resources.POST("", staff, resourceHandler.Upload)
		resources.GET("/:id/download", anyRole, resourceHandler.Download)
		resources.DELETE("/:id", staff, resourceHandler.Delete)
	}

	reports := protected.Group("/reports")
	{
		reports.POST("", staff, reportHandler.Create)
		reports.GET("/:id", anyRole, reportHandler.Status)
		reports.GET("/:id/download", anyRole, reportHandler.Download)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
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

// cleanupReports removes generated report files once their signed URLs can no
// longer be valid.
func cleanupReports(ctx context.Context, store *storage.LocalStorage, interval, ttl time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := store.CleanupOlderThan(ttl * 2)
			if err != nil {
				logr.Warn("report cleanup failed", zap.Error(err))
				continue
			}
			if len(deleted) > 0 {
				logr.Info("report cleanup", zap.Int("deleted", len(deleted)))
			}
		}
	}
}
