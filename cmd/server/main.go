package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload" // load .env before config.Load
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/config"
	"github.com/iliyamo/event-checkin/internal/database"
	"github.com/iliyamo/event-checkin/internal/formprovider"
	"github.com/iliyamo/event-checkin/internal/handler"
	"github.com/iliyamo/event-checkin/internal/issuance"
	"github.com/iliyamo/event-checkin/internal/logger"
	"github.com/iliyamo/event-checkin/internal/middleware"
	"github.com/iliyamo/event-checkin/internal/queue"
	"github.com/iliyamo/event-checkin/internal/repository"
	"github.com/iliyamo/event-checkin/internal/router"
	"github.com/iliyamo/event-checkin/internal/service"
	"github.com/iliyamo/event-checkin/internal/submission"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.Init(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		log.Fatal("schema", zap.Error(err))
	}

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		log.Warn("redis unavailable; rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	events := repository.NewEventRepo(db)
	users := repository.NewUserRepo(db)
	tickets := repository.NewTicketRepo(db)

	qcfg := queue.Config{
		Enabled:     cfg.AMQP.Enabled,
		URL:         cfg.AMQP.URL,
		LogDir:      cfg.AMQP.LogDir,
		DialTimeout: cfg.AMQP.DialTimeout,
		BufferSize:  cfg.AMQP.BufferSize,
	}
	publisher := queue.NewPublisher(qcfg, log)

	ingestion := service.NewIngestionService(service.IngestionConfig{
		DefaultEventDuration: cfg.DefaultEventDuration,
		IssueTimeout:         cfg.IssueTimeout,
		BcryptCost:           cfg.BcryptCost,
	}, service.IngestionDeps{
		Normalizer: submission.New(submission.Options{SessionLabels: cfg.SessionLabels}),
		Events:     events,
		Users:      users,
		Tickets:    tickets,
		QR:         issuance.NewQREncoder(),
		Mailer: issuance.NewSMTPMailer(issuance.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}),
		Publisher: publisher,
		Logger:    log,
	})
	checkin := service.NewCheckInService(service.CheckInConfig{SearchLimit: cfg.SearchLimit}, tickets, publisher, log)
	forms := formprovider.New(formprovider.Config{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Timeout: cfg.Provider.Timeout,
	})
	eventSvc := service.NewEventService(events, forms, cfg.DefaultEventDuration, log)
	auth := service.NewAuthService(users, cfg.JWTSecret, cfg.AccessTTLMin)

	if cfg.AMQP.Enabled {
		go publisher.Run(ctx)
		consumer := queue.NewAuditConsumer(qcfg, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(log))

	rlCfg := config.LoadRateLimitConfig()
	router.Register(e, router.Handlers{
		DB:      db,
		Webhook: handler.NewWebhookHandler(ingestion, log),
		Auth:    handler.NewAuthHandler(auth, log),
		CheckIn: handler.NewCheckInHandler(checkin, log),
		Events:  handler.NewEventHandler(eventSvc, log),
	}, router.Guards{
		JWTSecret: cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(rlCfg, rdb, log),
		ScanLimit: middleware.NewTokenBucket(rlCfg.ForScanners(), rdb, log),
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	})

	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}
