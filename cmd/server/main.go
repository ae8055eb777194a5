package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dias221467/ZielManager/internal/config"
	"github.com/Dias221467/ZielManager/internal/database"
	"github.com/Dias221467/ZielManager/internal/events"
	"github.com/Dias221467/ZielManager/internal/handlers"
	"github.com/Dias221467/ZielManager/internal/jobs"
	"github.com/Dias221467/ZielManager/internal/mailer"
	"github.com/Dias221467/ZielManager/internal/repository"
	"github.com/Dias221467/ZielManager/internal/scheduler"
	"github.com/Dias221467/ZielManager/internal/services"
	"github.com/Dias221467/ZielManager/internal/storage"
	"github.com/Dias221467/ZielManager/pkg/email"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/Dias221467/ZielManager/pkg/metrics"
	"github.com/Dias221467/ZielManager/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

const (
	shutdownTimeout = 15 * time.Second
	dispatchGroup   = "email-dispatch"
)

func main() {
	// Load configuration from .env file and environment
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Log.Fatalf("Configuration error: %v", err)
	}

	logger.InitLogger(cfg.LogLevel, cfg.Environment)
	logger.Log.WithField("env", cfg.Environment).Info("Logger initialized")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, db, err := database.ConnectDB(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("Database connection error: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Log.WithError(err).Warn("MongoDB disconnect failed")
		}
	}()

	// Redis carries notification events across replicas and guards cron
	// jobs. Without it everything runs in-process.
	var (
		redisClient *redis.Client
		bus         events.Bus
	)
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Log.Fatalf("Redis connection error: %v", err)
		}
		defer redisClient.Close()
		bus = events.NewRedisBus(redisClient)
		logger.Log.WithField("addr", cfg.Redis.Addr).Info("Connected to Redis")
	} else {
		bus = events.NewLocalBus()
		logger.Log.Warn("REDIS_ADDR not set, using in-process event bus")
	}

	var evidence services.BlobStore
	store, err := storage.NewEvidenceStore(ctx, storage.Config{
		Bucket:    cfg.S3.Bucket,
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
	})
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		logger.Log.Warn("Evidence storage disabled")
	case err != nil:
		logger.Log.Fatalf("Evidence storage error: %v", err)
	default:
		evidence = store
	}

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	jobMetrics := metrics.NewJobMetrics(registry)
	emailMetrics := metrics.NewEmailMetrics(registry)

	// --- Repositories ---
	userRepo := repository.NewUserRepository(db)
	goalRepo := repository.NewGoalRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	reminderRepo := repository.NewReminderLogRepository(db)

	// --- Services ---
	renderer := mailer.NewRenderer(cfg.AppURL)
	sender := email.NewSender(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Secure:   cfg.SMTP.Secure,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	notificationService := services.NewNotificationService(notificationRepo, userRepo, bus)
	goalService := services.NewGoalService(goalRepo, userRepo, notificationService, evidence)
	userService := services.NewUserService(userRepo, goalService, sender, renderer, services.TokenConfig{
		Secret: cfg.JWTSecret,
		Expiry: cfg.TokenExpiry,
	})
	evidenceService := services.NewEvidenceService(evidence, goalRepo, userRepo)
	leaderboardService := services.NewLeaderboardService(userRepo, goalRepo, settingsRepo)
	dispatchService := services.NewDispatchService(notificationRepo, userRepo, goalRepo, reminderRepo,
		sender, renderer, cfg.ReviewDeadline, emailMetrics)

	// Email goes out once per notification across all replicas; every
	// replica forwards events to its own websocket clients.
	if err := bus.Consume(ctx, dispatchGroup, dispatchService.HandleNotificationCreated); err != nil {
		logger.Log.Fatalf("Event consumer error: %v", err)
	}
	hub := handlers.NewNotificationHub()
	if err := bus.Subscribe(ctx, hub.HandleNotificationCreated); err != nil {
		logger.Log.Fatalf("Event subscription error: %v", err)
	}

	// --- Handlers ---
	userHandler := handlers.NewUserHandler(userService, notificationService)
	goalHandler := handlers.NewGoalHandler(goalService)
	evidenceHandler := handlers.NewEvidenceHandler(evidenceService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService)
	emailHandler := handlers.NewEmailHandler(dispatchService)
	callableHandler := handlers.NewCallableHandler(userService, dispatchService)
	streamHandler := handlers.NewStreamHandler(hub, cfg.JWTSecret, cfg.AllowedOrigins)

	// Initialize Gorilla Mux router
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)

	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	// Public routes are registered first so the authenticated subrouter
	// never shadows them.
	userHandler.RegisterPublic(router)
	streamHandler.Register(router)

	protected := router.NewRoute().Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	userHandler.Register(protected)
	goalHandler.Register(protected)
	evidenceHandler.Register(protected)
	notificationHandler.Register(protected)
	leaderboardHandler.Register(protected)
	callableHandler.Register(protected)
	emailHandler.Register(protected)

	// --- Cron ---
	sched := scheduler.New(jobMetrics)
	reminderJob := jobs.NewReviewReminder(dispatchService)
	var reminderLock scheduler.Lock
	if redisClient != nil {
		l, err := scheduler.NewRedisLock(redisClient, "zielmanager:cron:"+reminderJob.Name(), 0)
		if err != nil {
			logger.Log.Fatalf("Cron lock error: %v", err)
		}
		reminderLock = l
	}
	if err := sched.Add(cfg.WeeklyReminderCron, reminderJob, reminderLock); err != nil {
		logger.Log.Fatalf("Cron error: %v", err)
	}
	sched.Start()

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.WithField("port", cfg.Port).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("HTTP server shutdown failed")
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Log.WithError(err).Warn("Cron jobs did not finish in time")
	}
	if local, ok := bus.(*events.LocalBus); ok {
		local.Wait()
	}
}
