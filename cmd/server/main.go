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
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"memberhub.backend/internal/config"
	"memberhub.backend/internal/domain/entities"
	"memberhub.backend/internal/infrastructure/datasources/postgres"
	"memberhub.backend/internal/infrastructure/documents"
	"memberhub.backend/internal/infrastructure/gateway"
	"memberhub.backend/internal/infrastructure/identity"
	"memberhub.backend/internal/infrastructure/jobs"
	"memberhub.backend/internal/infrastructure/repositories"
	"memberhub.backend/internal/infrastructure/storage"
	"memberhub.backend/internal/interfaces/http/handlers"
	"memberhub.backend/internal/interfaces/http/middleware"
	"memberhub.backend/internal/usecases"
	"memberhub.backend/pkg/jwt"
	"memberhub.backend/pkg/logger"
	"memberhub.backend/pkg/metrics"
	"memberhub.backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(cfg config.DatabaseConfig) (*gorm.DB, error) {
		sqlDB, err := postgres.NewConnection(cfg)
		if err != nil {
			return nil, err
		}
		return postgres.OpenGorm(sqlDB)
	}
	migrateDB       = repositories.AutoMigrate
	newSessionStore = redis.NewSessionStore
	newRenderer     = documents.NewApplicationRenderer
	runServer       = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownSignal  = func() <-chan os.Signal {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		return quit
	}
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := loadCfg()
	if err != nil {
		return err
	}

	initLog(cfg.Server.Env)
	ctx := context.Background()
	logger.Info(ctx, "Logger initialized", zap.String("env", cfg.Server.Env))

	if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
		logger.Error(ctx, "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	logger.Info(ctx, "Redis initialized")

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if cfg.Database.AutoMigrate {
		if err := migrateDB(ctx, db); err != nil {
			return err
		}
		logger.Info(ctx, "Schema migrated")
	}
	caps := repositories.DetectSchemaCapabilities(ctx, db)
	logger.Info(ctx, "Schema detected",
		zap.Bool("display_id_column", caps.DisplayIDColumn),
		zap.Bool("membership_cards_table", caps.MembershipCardsTable),
	)

	sessionStore, err := newSessionStore(cfg.Security.SessionEncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	renderer, err := newRenderer(cfg.Onboarding.WatermarkPath)
	if err != nil {
		return fmt.Errorf("failed to initialize document renderer: %w", err)
	}
	pollLock, err := jobs.NewRedisPollLock()
	if err != nil {
		return fmt.Errorf("failed to initialize poll lock: %w", err)
	}

	// Repositories
	members := repositories.NewMemberProfileRepository(db, caps)
	records := repositories.NewOnboardingRecordRepository(db)
	payments := repositories.NewPaymentAttemptRepository(db)
	cards := repositories.NewMembershipCardRepository(db, caps)
	uow := repositories.NewUnitOfWork(db)

	// External services
	jwtService := jwt.NewJWTService(cfg.Identity.JWTSecret, cfg.Identity.Audience)
	gatewayClient := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, &http.Client{Timeout: cfg.Gateway.HTTPTimeout})
	blobClient := storage.NewClient(cfg.Storage.BaseURL, cfg.Storage.PublicURL, cfg.Storage.Bucket, cfg.Storage.ServiceKey, &http.Client{Timeout: cfg.Storage.HTTPTimeout})
	identityClient := identity.NewAdminClient(cfg.Identity.AdminURL, cfg.Identity.ServiceKey, &http.Client{Timeout: cfg.Identity.HTTPTimeout})
	m := metrics.New(prometheus.NewRegistry())

	// Usecases
	poller := jobs.NewPaymentPoller(gatewayClient, pollLock, cfg.Gateway.PollInterval, m)
	allocator := usecases.NewDisplayIDAllocator(members, caps, m)
	reconciliationUsecase := usecases.NewReconciliationUsecase(members, identityClient, allocator, m)
	sessionService := usecases.NewSessionService(sessionStore, reconciliationUsecase, records, poller, cfg.Security.SessionTTL)
	onboardingUsecase := usecases.NewOnboardingUsecase(usecases.OnboardingDeps{
		UnitOfWork: uow,
		Members:    members,
		Records:    records,
		Payments:   payments,
		Cards:      cards,
		Documents:  usecases.NewDocumentStage(blobClient, cfg.Onboarding.MaxDocumentBytes),
		Payment:    usecases.NewPaymentStage(gatewayClient, cfg.Onboarding.ChargeAmount, cfg.Gateway.BoletoDueIn),
		Signature:  usecases.NewSignatureStage(renderer, blobClient, cfg.Onboarding.Organization),
		Poller:     poller,
		Tracker:    sessionService,
		StartLock:  jobs.NewRedisStartLock(startLockTTL(cfg.Gateway.HTTPTimeout)),
		Metrics:    m,
	})
	poller.SetSettler(onboardingUsecase)
	memberUsecase := usecases.NewMemberUsecase(uow, members, records, payments, cards, poller)

	resumePolls(ctx, poller, payments)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware("/health", "/metrics"))

	applyCORSMiddleware(r)
	registerHealthRoute(r)
	registerMetricsRoute(r, m)
	registerAPIV1Routes(r, routeDeps{
		authHandler:       handlers.NewAuthHandler(sessionService),
		memberHandler:     handlers.NewMemberHandler(memberUsecase),
		onboardingHandler: handlers.NewOnboardingHandler(onboardingUsecase, cfg.Onboarding.MaxDocumentBytes),
		adminHandler:      handlers.NewAdminHandler(memberUsecase, reconciliationUsecase),
		identityAuth:      middleware.IdentityAuth(jwtService),
		sessionAuth:       middleware.SessionAuth(sessionService),
		requireAdmin:      middleware.RequireAdmin(memberUsecase),
		maxUploadBytes:    cfg.Onboarding.MaxDocumentBytes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := shutdownSignal()
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-quit:
		case <-stop:
			return
		}
		logger.Info(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn(ctx, "HTTP shutdown incomplete", zap.Error(err))
		}
	}()

	logger.Info(ctx, "Memberhub backend starting", zap.String("port", cfg.Server.Port))
	serveErr := runServer(srv)
	close(stop)
	<-done
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := poller.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "Payment poller did not stop in time", zap.Error(err))
	}

	if serveErr != nil {
		return fmt.Errorf("failed to start server: %w", serveErr)
	}
	return nil
}

// startLockTTL covers the customer, charge and QR code calls of one initiation.
func startLockTTL(gatewayTimeout time.Duration) time.Duration {
	if gatewayTimeout <= 0 {
		return jobs.DefaultStartLockTTL
	}
	return 4 * gatewayTimeout
}

// resumePolls restarts the loops of payments left processing by a previous process.
func resumePolls(ctx context.Context, poller *jobs.PaymentPoller, payments *repositories.PaymentAttemptRepository) {
	pending, err := payments.ListByStatus(ctx, entities.PaymentStatusProcessing)
	if err != nil {
		logger.Warn(ctx, "Failed to list processing payments", zap.Error(err))
		return
	}
	if n := poller.Resume(ctx, pending); n > 0 {
		logger.Info(ctx, "Resumed payment polls", zap.Int("count", n))
	}
}
