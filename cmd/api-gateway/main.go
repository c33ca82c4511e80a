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
	"go.uber.org/zap"

	_ "github.com/studybridge/studybridge-api/api/swagger"
	"github.com/studybridge/studybridge-api/internal/handler"
	"github.com/studybridge/studybridge-api/internal/middleware"
	"github.com/studybridge/studybridge-api/internal/models"
	"github.com/studybridge/studybridge-api/internal/repository"
	"github.com/studybridge/studybridge-api/internal/service"
	"github.com/studybridge/studybridge-api/pkg/cache"
	"github.com/studybridge/studybridge-api/pkg/config"
	"github.com/studybridge/studybridge-api/pkg/database"
	"github.com/studybridge/studybridge-api/pkg/export"
	"github.com/studybridge/studybridge-api/pkg/jobs"
	"github.com/studybridge/studybridge-api/pkg/logger"
	corsmiddleware "github.com/studybridge/studybridge-api/pkg/middleware/cors"
	reqidmiddleware "github.com/studybridge/studybridge-api/pkg/middleware/requestid"
	"github.com/studybridge/studybridge-api/pkg/storage"
)

// @title StudyBridge API
// @version 1.0.0
// @description Coordination platform for students studying abroad and their agents
// @BasePath /api
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	uploadStorage, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare uploads directory", zap.Error(err))
	}

	validate := validator.New()
	metricsService := service.NewMetricsService()

	// Listing cache is optional; the service degrades to direct reads when
	// Redis is unavailable or disabled.
	var cacheService *service.CacheService
	if cfg.Listings.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, listing cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Listings.CacheTTL, logr, true)
		}
	}

	userRepo := repository.NewUserRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	universityRepo := repository.NewUniversityRepository(db)
	jobRepo := repository.NewJobRepository(db)
	scholarshipRepo := repository.NewScholarshipRepository(db)
	reportRepo := repository.NewReportRepository(db)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	appointmentService := service.NewAppointmentService(appointmentRepo, userRepo, validate, logr)
	documentService := service.NewDocumentService(documentRepo, appointmentRepo, uploadStorage, service.DocumentLimits{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
	}, validate, logr)
	paymentService := service.NewPaymentService(paymentRepo, userRepo, uploadStorage, validate, logr)
	reviewService := service.NewReviewService(reviewRepo, userRepo, validate, logr)
	profileService := service.NewProfileService(profileRepo, userRepo, validate, logr)
	listingService := service.NewListingService(universityRepo, jobRepo, scholarshipRepo, cacheService, cfg.Listings.CacheTTL, validate, logr)

	authHandler := handler.NewAuthHandler(authService)
	appointmentHandler := handler.NewAppointmentHandler(appointmentService)
	documentHandler := handler.NewDocumentHandler(documentService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	reviewHandler := handler.NewReviewHandler(reviewService)
	profileHandler := handler.NewProfileHandler(profileService)
	listingHandler := handler.NewListingHandler(listingService)
	opsHandler := handler.NewOpsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	appointments := api.Group("/appointments", middleware.JWT(authService))
	{
		appointments.POST("", middleware.RequireRoles(models.RoleStudent), appointmentHandler.Book)
		appointments.GET("/agent/:agentId", middleware.RequireRoles(models.RoleAgent), appointmentHandler.PendingForAgent)
		appointments.GET("/my", appointmentHandler.Mine)
		appointments.GET("/my/approved", appointmentHandler.MineApproved)
		appointments.PUT("/:appointmentId", middleware.RequireRoles(models.RoleAgent), appointmentHandler.Decide)
		appointments.DELETE("/:appointmentId", middleware.RequireRoles(models.RoleStudent), appointmentHandler.Cancel)
	}

	documents := api.Group("/documents", middleware.JWT(authService))
	{
		documents.POST("/appointment/:appointmentId", middleware.RequireRoles(models.RoleStudent), documentHandler.Upload)
		documents.GET("/appointment/:appointmentId", documentHandler.List)
		documents.GET("/:id/download", documentHandler.Download)
		documents.PUT("/:id", middleware.RequireRoles(models.RoleStudent), documentHandler.Update)
		documents.DELETE("/:id", middleware.RequireRoles(models.RoleStudent), documentHandler.Delete)
	}

	payments := api.Group("/payments", middleware.JWT(authService))
	{
		payments.POST("/agent/:agentId", middleware.RequireRoles(models.RoleStudent), paymentHandler.Record)
		payments.GET("/agent", middleware.RequireRoles(models.RoleAgent), paymentHandler.ForAgent)
		payments.GET("/student", middleware.RequireRoles(models.RoleStudent), paymentHandler.ForStudent)
		payments.PUT("/:id", middleware.RequireRoles(models.RoleAgent), paymentHandler.Decide)
		payments.DELETE("/:id", middleware.RequireRoles(models.RoleStudent), paymentHandler.Delete)
		payments.GET("/:id/slip", paymentHandler.Slip)
	}

	reviews := api.Group("/reviews")
	{
		reviews.POST("/agent/:agentId", middleware.JWT(authService), middleware.RequireRoles(models.RoleStudent), reviewHandler.Submit)
		reviews.GET("/agent/:agentId", middleware.OptionalJWT(authService), reviewHandler.ForAgent)
		reviews.PUT("/:id", middleware.JWT(authService), middleware.RequireRoles(models.RoleStudent), reviewHandler.Update)
		reviews.DELETE("/:id", middleware.JWT(authService), middleware.RequireRoles(models.RoleStudent), reviewHandler.Delete)
	}

	profiles := api.Group("/profiles", middleware.JWT(authService))
	{
		profiles.GET("/student/me", middleware.RequireRoles(models.RoleStudent), profileHandler.StudentMe)
		profiles.PUT("/student/me", middleware.RequireRoles(models.RoleStudent), profileHandler.UpdateStudentMe)
		profiles.GET("/agent/me", middleware.RequireRoles(models.RoleAgent), profileHandler.AgentMe)
		profiles.PUT("/agent/me", middleware.RequireRoles(models.RoleAgent), profileHandler.UpdateAgentMe)
	}

	agents := api.Group("/agents")
	{
		agents.GET("", profileHandler.Agents)
		agents.GET("/:agentId", profileHandler.Agent)
		agents.PUT("/:agentId/verify", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin), profileHandler.VerifyAgent)
	}

	for _, group := range []struct {
		prefix string
		list   gin.HandlerFunc
		get    gin.HandlerFunc
		create gin.HandlerFunc
		update gin.HandlerFunc
		remove gin.HandlerFunc
	}{
		{"/universities", listingHandler.Universities, listingHandler.University, listingHandler.CreateUniversity, listingHandler.UpdateUniversity, listingHandler.DeleteUniversity},
		{"/jobs", listingHandler.Jobs, listingHandler.Job, listingHandler.CreateJob, listingHandler.UpdateJob, listingHandler.DeleteJob},
		{"/scholarships", listingHandler.Scholarships, listingHandler.Scholarship, listingHandler.CreateScholarship, listingHandler.UpdateScholarship, listingHandler.DeleteScholarship},
	} {
		g := api.Group(group.prefix)
		g.GET("", group.list)
		g.GET("/:id", group.get)
		g.POST("", middleware.JWT(authService), middleware.RequireRoles(models.RoleAgent, models.RoleAdmin), group.create)
		g.PUT("/:id", middleware.JWT(authService), middleware.RequireRoles(models.RoleAgent, models.RoleAdmin), group.update)
		g.DELETE("/:id", middleware.JWT(authService), middleware.RequireRoles(models.RoleAgent, models.RoleAdmin), group.remove)
	}

	api.GET("/ops/metrics", middleware.JWT(authService), middleware.RBAC(string(models.RoleAdmin)), opsHandler.System)

	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		exportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Fatal("failed to prepare exports directory", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportService := service.NewExportService(appointmentRepo, paymentRepo, exportStorage, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		}, logr, export.NewCSVExporter(), export.NewPDFExporter())

		reportWorker := service.NewReportWorker(reportRepo, exportService, cfg.Reports.WorkerRetries, logr)
		reportQueue = jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportQueue.Start(rootCtx)

		reportService := service.NewReportService(reportRepo, reportQueue, exportService, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
			MaxRetries:      cfg.Reports.WorkerRetries,
		})
		reportService.RecoverPendingJobs(rootCtx)
		reportService.StartCleanup(rootCtx)

		reportHandler := handler.NewReportHandler(reportService)
		reports := api.Group("/reports")
		{
			reports.POST("/generate", middleware.JWT(authService), middleware.RequireRoles(models.RoleAgent, models.RoleAdmin), reportHandler.Generate)
			reports.GET("/export/:token", reportHandler.Export)
			reports.GET("/:id", middleware.JWT(authService), reportHandler.Status)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("forced shutdown", zap.Error(err))
	}
	if reportQueue != nil {
		reportQueue.Stop()
	}
}
