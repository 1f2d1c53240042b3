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

	_ "github.com/noah-isme/lms-api/api/swagger"
	"github.com/noah-isme/lms-api/internal/handler"
	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/realtime"
	"github.com/noah-isme/lms-api/internal/repository"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/pkg/cache"
	"github.com/noah-isme/lms-api/pkg/config"
	"github.com/noah-isme/lms-api/pkg/database"
	"github.com/noah-isme/lms-api/pkg/errreport"
	"github.com/noah-isme/lms-api/pkg/export"
	"github.com/noah-isme/lms-api/pkg/jobs"
	"github.com/noah-isme/lms-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-api/pkg/middleware/requestid"
	"github.com/noah-isme/lms-api/pkg/notify"
	"github.com/noah-isme/lms-api/pkg/storage"
)

// @title LMS API
// @version 1.0
// @description Teams, rosters, attendance and account lifecycle for the LMS frontend
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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, "lms", logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Roster.CacheTTL, logr, cfg.Roster.CacheEnabled && cacheRepo.Enabled())
	validate := validator.New()

	queue := jobs.NewQueue("notifications", jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		BufferSize: cfg.Jobs.BufferSize,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})

	users := repository.NewUserRepository(db)
	teams := repository.NewTeamRepository(db)
	attendance := repository.NewAttendanceRepository(db)
	courses := repository.NewCourseRepository(db)
	messages := repository.NewMessageRepository(db)
	tokens := repository.NewDeviceTokenRepository(db)
	merges := repository.NewMergeRepository(db)

	notifications := service.NewNotificationService(service.NotificationServiceConfig{
		Tokens:     tokens,
		Users:      users,
		Pusher:     buildPusher(ctx, cfg.Push, logr),
		Mailer:     buildMailer(cfg.Mail, logr),
		Queue:      queue,
		Metrics:    metrics,
		AppBaseURL: cfg.Mail.AppBaseURL,
		Validator:  validate,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	uploader, localDir, err := buildUploader(cfg.Uploads, logr)
	if err != nil {
		return err
	}

	hub := realtime.NewHub(metrics, logr)
	defer hub.Close()

	authSvc := service.NewAuthService(logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		Expiration: cfg.JWT.Expiration,
	})
	userSvc := service.NewUserService(users, cacheSvc, logr)
	mergeSvc := service.NewMergeService(merges, users, cacheSvc, metrics, logr)
	teamSvc := service.NewTeamService(teams, users, notifications, cacheSvc, metrics, validate, logr)
	rosterSvc := service.NewRosterService(service.RosterServiceConfig{
		Teams:      teams,
		Users:      users,
		Attendance: attendance,
		Courses:    courses,
		Cache:      cacheSvc,
		CacheTTL:   cfg.Roster.CacheTTL,
		Metrics:    metrics,
		Logger:     logr,
	})
	attendanceSvc := service.NewAttendanceService(attendance, cacheSvc, validate, logr)
	chatSvc := service.NewChatService(service.ChatServiceConfig{
		Teams:       teams,
		Messages:    messages,
		Uploader:    uploader,
		Broadcaster: hub,
		MaxFileSize: cfg.Uploads.MaxFileSizeBytes,
		Validator:   validate,
		Logger:      logr,
	})
	lorSvc := service.NewLORService(teams, users, export.NewPDFExporter(), logr)
	webhookSvc := service.NewWebhookService(cfg.Webhooks.IdentitySecret, userSvc, mergeSvc, validate, logr)

	reporter := errreport.NewRollbarReporter(cfg.ErrorReporter.RollbarToken, cfg.Env, cfg.Version, cfg.ErrorReporter.ServerHost, logr)
	defer reporter.Close()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.Uploads.MaxFileSizeBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(reporter.Middleware())

	metricsHandler := handler.NewMetricsHandler(metrics, cfg.Version, map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"redis":    cacheRepo.Ping,
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if localDir != "" {
		r.Static(cfg.Uploads.PublicBaseURL, localDir)
	}

	handler.Router{
		Auth:         authSvc,
		Users:        userSvc,
		Audit:        users,
		Roster:       handler.NewRosterHandler(rosterSvc),
		Team:         handler.NewTeamHandler(teamSvc),
		Chat:         handler.NewChatHandler(chatSvc, hub, cfg.CORS.AllowedOrigins, logr),
		Attendance:   handler.NewAttendanceHandler(attendanceSvc),
		User:         handler.NewUserHandler(userSvc),
		Notification: handler.NewNotificationHandler(notifications),
		LOR:          handler.NewLORHandler(lorSvc),
		Webhook:      handler.NewWebhookHandler(webhookSvc),
		Metrics:      metricsHandler,
		Logger:       logr,
	}.Register(r.Group(cfg.APIPrefix))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logr.Info("server stopped")
	return nil
}

func buildPusher(ctx context.Context, cfg config.PushConfig, logr *zap.Logger) service.Pusher {
	if cfg.FirebaseCredentialsFile == "" {
		logr.Info("push notifications disabled")
		return nil
	}
	pusher, err := notify.NewFCMPusher(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
	if err != nil {
		logr.Warn("push notifications disabled", zap.Error(err))
		return nil
	}
	return pusher
}

func buildMailer(cfg config.MailConfig, logr *zap.Logger) service.Mailer {
	if cfg.SendgridAPIKey == "" {
		logr.Info("email notifications disabled")
		return nil
	}
	return notify.NewSendgridMailer(cfg.SendgridAPIKey, cfg.FromName, cfg.FromAddress, cfg.SubjectPrefix)
}

// buildUploader prefers Cloudinary and falls back to local disk. The local
// directory is returned so it can be served statically.
func buildUploader(cfg config.UploadsConfig, logr *zap.Logger) (storage.Uploader, string, error) {
	if cfg.CloudinaryEnabled() {
		store, err := storage.NewCloudinaryStorage(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		if err != nil {
			return nil, "", fmt.Errorf("cloudinary: %w", err)
		}
		logr.Info("team files stored in cloudinary", zap.String("folder", cfg.CloudinaryFolder))
		return store, "", nil
	}
	store, err := storage.NewLocalStorage(cfg.LocalDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("local storage: %w", err)
	}
	logr.Info("team files stored on disk", zap.String("dir", store.Dir()))
	return store, store.Dir(), nil
}
