package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/introlink/messaging/internal/application"
	"github.com/introlink/messaging/internal/bus"
	"github.com/introlink/messaging/internal/config"
	"github.com/introlink/messaging/internal/kafka"
	"github.com/introlink/messaging/internal/middleware"
	"github.com/introlink/messaging/internal/observability"
	"github.com/introlink/messaging/internal/outbox"
	"github.com/introlink/messaging/internal/repository/postgres"
	"github.com/introlink/messaging/internal/router"
	"github.com/introlink/messaging/internal/storage"
	"github.com/introlink/messaging/internal/tx"
)

func main() {
	cfg := config.Load()

	observability.InitLogger(cfg.ServiceName)
	log := observability.GetLogger(context.Background())
	defer log.Sync()

	if cfg.TracingEnabled && cfg.JaegerURL != "" {
		tp, err := observability.InitTracer(cfg.ServiceName, cfg.JaegerURL)
		if err != nil {
			log.Fatal("failed to init tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			tp.Shutdown(ctx)
		}()
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		log.Fatal("database unreachable", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := bus.NewRegistry()
	rooms := bus.NewRooms()

	// Without Redis the bus still fans out to sessions on this instance;
	// the router only bridges instances.
	var busRouter *bus.Router
	if cfg.RedisAddr != "" {
		busRouter = bus.NewRouter(cfg.RedisAddr, cfg.InstanceID)
		defer busRouter.Close()
	}

	eventBus := bus.New(registry, rooms, busRouter, cfg.ServiceName, log)
	eventBus.Start(ctx)

	repo := &postgres.Repository{DB: db}
	transactor := &tx.Manager{DB: db}
	app := application.New(repo, transactor, eventBus, log)

	var producer *kafka.Producer
	if cfg.KafkaBrokers != "" {
		producer, err = kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatal("failed to create kafka producer", zap.Error(err))
		}

		worker := &outbox.Worker{
			DB:          db,
			Producer:    producer,
			Topic:       cfg.NotificationTopic,
			ServiceName: cfg.ServiceName,
			BatchSize:   100,
			PollDelay:   500 * time.Millisecond,
			Log:         log,
		}
		go worker.Start(ctx)
	} else {
		log.Warn("KAFKA_BROKERS not set, notification outbox disabled")
	}

	store := &storage.LocalStore{Dir: cfg.UploadDir, BaseURL: cfg.UploadBaseURL}

	verify := func(token string) (string, error) {
		return middleware.VerifyToken(token, cfg.JWTSecret)
	}
	wsHandler := bus.NewHandler(registry, rooms, eventBus, app, verify, cfg.ServiceName)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router.New(cfg, app, wsHandler, store, db),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}

	registry.CloseAll()

	if producer != nil {
		producer.Flush(5000)
	}

	log.Info("shutdown complete")
	os.Exit(0)
}
