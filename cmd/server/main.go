package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"flashnotes-backend/internal/config"
	"flashnotes-backend/internal/database"
	"flashnotes-backend/internal/flashcards"
	"flashnotes-backend/internal/handlers"
	"flashnotes-backend/internal/logger"
	"flashnotes-backend/internal/metrics"
	"flashnotes-backend/internal/middleware"
	"flashnotes-backend/internal/repository"
	"flashnotes-backend/internal/router"
	"flashnotes-backend/internal/services"
	"flashnotes-backend/internal/websocket"
	"flashnotes-backend/internal/worker"
)

const maxNoteChars = 200000

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	log.Info("starting flashnotes backend", zap.String("env", cfg.Env), zap.String("provider", cfg.GenerationProvider))
	if cfg.IsProduction() && cfg.PaymentWebhookSecret == "" {
		log.Warn("PAYMENT_WEBHOOK_SECRET is not set; every billing webhook will be rejected")
	}

	ctx := context.Background()

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("postgres connection failed", zap.Error(err))
	}
	defer pool.Close()

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClients.Close()

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("database migration failed", zap.Error(err))
	}

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	flashcardRepo := repository.NewFlashcardRepo(pool)
	paymentRepo := repository.NewPaymentRepo(pool)
	jobRepo := repository.NewJobRepo(pool)

	collector := metrics.NewCollector("flashnotes")

	// ──── Step 5: Initialize Question Generator ────
	generator, closeGenerator, err := services.NewGenerator(ctx, cfg, log, collector)
	if err != nil {
		log.Fatal("question generator initialization failed", zap.Error(err))
	}
	defer closeGenerator()

	synth := flashcards.NewSynthesizer(generator, cfg.GenerationTimeout, log, collector)
	pipeline := flashcards.NewPipeline(synth, flashcardRepo, flashcards.PipelineConfig{
		MaxCards:    cfg.MaxCards,
		Concurrency: cfg.SynthesisConcurrency,
	}, log, collector)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	authService := services.NewAuthService(userRepo, services.NewRedisTokenStore(redisClients.Queue), jwtAuth, log)
	quotaService := services.NewQuotaService(services.NewRedisQuotaCounter(redisClients.Queue), cfg.FreeDailyGenerations, collector)
	billingService := services.NewBillingService(paymentRepo, cfg.PaymentWebhookSecret, log)
	queue := worker.NewRedisQueue(redisClients.Queue)

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	flashcardHandler := handlers.NewFlashcardHandler(pipeline, quotaService, jobRepo, queue, cfg.StoragePath, log)
	userHandler := handlers.NewUserHandler(userRepo, flashcardRepo, quotaService, log)
	jobHandler := handlers.NewJobHandler(jobRepo)
	billingHandler := handlers.NewBillingHandler(billingService, paymentRepo, log)
	healthHandler := handlers.NewHealthHandler(pool)

	// ──── Step 6: Start Job Worker Pool ────
	workerPool := worker.NewPool(worker.Deps{
		Redis:       redisClients.Queue,
		Jobs:        jobRepo,
		Pipeline:    pipeline,
		Extractor:   services.NewNoteExtractor(maxNoteChars),
		Transcripts: services.NewTranscriptService(log),
		Queue:       queue,
		Publisher:   worker.NewRedisPublisher(redisClients.Queue),
		Quota:       quotaService,
		Logger:      log,
		Observer:    collector,
	}, cfg.WorkerCount)
	workerPool.Start()

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, log)

	// ──── Step 8: Start HTTP Server ────
	r := router.New(
		log,
		collector,
		jwtAuth,
		authHandler,
		flashcardHandler,
		userHandler,
		jobHandler,
		billingHandler,
		healthHandler,
		wsHub,
		cfg.FrontendURL,
		cfg.RateLimitPerMin,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
		wsHub.Close()
		workerPool.Stop()
	}()

	log.Info("flashnotes backend ready", zap.String("addr", server.Addr))

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server error", zap.Error(err))
	}
	<-stopped
}
