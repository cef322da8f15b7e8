package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/tertab-backend/internal/config"
	"github.com/ignatzorin/tertab-backend/internal/db"
	"github.com/ignatzorin/tertab-backend/internal/domain/repository"
	"github.com/ignatzorin/tertab-backend/internal/goroutine"
	"github.com/ignatzorin/tertab-backend/internal/http/middleware"
	httpRouter "github.com/ignatzorin/tertab-backend/internal/http/router"
	"github.com/ignatzorin/tertab-backend/internal/infrastructure/mail"
	"github.com/ignatzorin/tertab-backend/internal/infrastructure/persistence"
	"github.com/ignatzorin/tertab-backend/internal/interface/http/handler"
	"github.com/ignatzorin/tertab-backend/internal/logger"
	"github.com/ignatzorin/tertab-backend/internal/platform/redis"
	"github.com/ignatzorin/tertab-backend/internal/service"
	"github.com/ignatzorin/tertab-backend/internal/storage"
	"github.com/ignatzorin/tertab-backend/internal/usecase/attachment"
	"github.com/ignatzorin/tertab-backend/internal/usecase/attendance"
	"github.com/ignatzorin/tertab-backend/internal/usecase/dispute"
	"github.com/ignatzorin/tertab-backend/internal/usecase/reference"
	"github.com/ignatzorin/tertab-backend/internal/usecase/verification"
	"github.com/ignatzorin/tertab-backend/internal/usecase/workflow"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: load config: %v", err)
	}

	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}
	mainLog := logger.For("main")

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		mainLog.WithError(err).Fatal("connect to database")
	}
	defer closeQuietly("database", dbConn.Close)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		mainLog.WithError(err).Fatal("run migrations")
	}

	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		mainLog.WithError(err).Fatal("connect to redis")
	}
	var limiterClient *goredis.Client
	if redisClient != nil {
		limiterClient = redisClient.Client
		defer closeQuietly("redis", redisClient.Close)
	}

	documentStorage, err := storage.NewDocumentStorage(cfg.DocumentStoragePath, cfg.MaxUploadKB)
	if err != nil {
		mainLog.WithError(err).Fatal("prepare document storage")
	}

	var mailer repository.Mailer
	if cfg.KafkaBroker != "" {
		kafkaMailer := mail.NewKafkaMailer(mail.KafkaConfig{
			Broker:   cfg.KafkaBroker,
			Topic:    cfg.KafkaMailTopic,
			Username: cfg.KafkaUsername,
			Password: cfg.KafkaPassword,
		})
		defer closeQuietly("kafka writer", kafkaMailer.Close)
		mailer = kafkaMailer
	} else {
		mainLog.Warn("KAFKA_BROKER is not set, verification mail is only logged")
		mailer = mail.NewLogMailer()
	}

	// Репозитории.
	attendanceRepo := persistence.NewAttendanceRepositoryAdapter(dbConn)
	documentRepo := persistence.NewDocumentRepositoryAdapter(dbConn)
	referenceRepo := persistence.NewReferenceRepositoryAdapter(dbConn)
	disputeRepo := persistence.NewDisputeRepositoryAdapter(dbConn)
	settingsRepo := persistence.NewSettingsRepositoryAdapter(dbConn)

	// Сервисы и менеджеры.
	settings := service.NewSettingsService(settingsRepo, service.NewCacheService(ctx), cfg.SettingsCacheTTL)
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)
	attacher := attachment.NewAttacher(documentStorage, documentRepo, cfg.StorageTimeout, cfg.UploadConcurrency)
	tokens := verification.NewTokenService(attendanceRepo, cfg.VerificationTokenTTL)

	attendanceManager := attendance.NewManager(
		attendanceRepo, documentRepo, documentStorage, mailer, settings, attacher, tokens,
		attendance.Config{
			VerifyBaseURL:  cfg.VerifyBaseURL,
			MailTimeout:    cfg.MailTimeout,
			StorageTimeout: cfg.StorageTimeout,
		},
	)
	referenceManager := reference.NewManager(
		referenceRepo, documentRepo, documentStorage, settings, attacher,
		reference.NewLecturerEligibility(attendanceRepo),
	)
	disputeManager := dispute.NewManager(disputeRepo)
	orchestrator := workflow.NewOrchestrator(attendanceManager, referenceManager, disputeManager)

	// HTTP.
	checks := map[string]handler.HealthCheck{
		"database": dbConn.PingContext,
		"connection_pool": func(context.Context) error {
			stats := dbConn.Stats()
			if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
				return errors.New("connection pool exhausted")
			}
			return nil
		},
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Health
	}

	rateStore, err := middleware.NewRateLimitStore(limiterClient)
	if err != nil {
		mainLog.WithError(err).Fatal("prepare rate limit store")
	}

	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Institutions: handler.NewInstitutionHandler(orchestrator),
		References:   handler.NewReferenceHandler(orchestrator),
		Disputes:     handler.NewDisputeHandler(orchestrator),
		Health:       handler.NewHealthHandler(checks),
	}, tokenManager, rateStore)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.Go(ctx, "http shutdown", func(ctx context.Context) {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			mainLog.WithError(err).Error("shutdown http server")
		}
	})

	mainLog.WithFields(logrus.Fields{"port": cfg.HTTPPort, "env": cfg.Env}).Info("http server started")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		mainLog.WithError(err).Fatal("http server stopped")
	}
}

// closeQuietly закрывает ресурс и пишет ошибку в лог.
func closeQuietly(name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.For("main").WithError(err).WithField("resource", name).Warn("close failed")
	}
}
