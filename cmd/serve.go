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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	_ "github.com/ViniMesquitaa/map-medical/docs"
	"github.com/ViniMesquitaa/map-medical/internal/config"
	"github.com/ViniMesquitaa/map-medical/internal/geocoding"
	v1 "github.com/ViniMesquitaa/map-medical/internal/handler/http/v1"
	"github.com/ViniMesquitaa/map-medical/internal/metrics"
	"github.com/ViniMesquitaa/map-medical/internal/notify"
	"github.com/ViniMesquitaa/map-medical/internal/repository"
	"github.com/ViniMesquitaa/map-medical/internal/scheduler"
	"github.com/ViniMesquitaa/map-medical/internal/service"
	"github.com/ViniMesquitaa/map-medical/internal/webhook"
	"github.com/ViniMesquitaa/map-medical/pkg/logger"
	"github.com/ViniMesquitaa/map-medical/pkg/postgres"
	redisclient "github.com/ViniMesquitaa/map-medical/pkg/redis"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel)

	// Контекст для graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Хранилища
	var (
		requestRepo   service.RequestRepository
		responderRepo service.ResponderRepository
	)
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		log.Info("Running database migrations...")
		if err := postgres.Migrate(cfg.DatabaseURL, cfg.MigrationsPath, false); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
		log.Info("Database migrations applied successfully")

		dbpool, err := postgres.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		defer dbpool.Close()
		log.Info("Successfully connected to PostgreSQL")

		requestRepo = repository.NewRequestRepository(dbpool)
		responderRepo = repository.NewResponderRepository(dbpool)
	default:
		log.Warn("Using in-memory store, requests are lost on restart")
		requestRepo = repository.NewMemoryRequestStore()
		responderRepo = repository.NewMemoryResponderStore()
	}

	// Redis нужен для очереди вебхуков и лимитов; без него сервис работает в урезанном режиме
	var (
		publisher    webhook.WebhookPublisher
		limiterStore limiter.Store = memory.NewStore()
	)
	redisClient, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, webhooks disabled and rate limits kept in memory")
	} else {
		defer redisClient.Close()
		log.Info("Successfully connected to Redis")

		publisher = webhook.NewRedisWebhookPublisher(redisClient)
		webhookWorker := webhook.NewWebhookWorker(redisClient, log, cfg)
		workerDone := webhookWorker.Start(ctx)
		defer func() {
			stop()
			<-workerDone
		}()

		limiterStore, err = newRedisLimiterStore(redisClient)
		if err != nil {
			return err
		}
	}

	// Метрики
	dispatchMetrics, err := metrics.NewDispatch(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// Внешние сервисы
	geocoder, err := geocoding.NewClient(geocoding.Config{
		APIKey:   cfg.GoogleMapsAPIKey,
		BaseURL:  cfg.GeocodeBaseURL,
		Language: cfg.GeocodeLanguage,
		Timeout:  cfg.GeocodeTimeout,
	})
	if err != nil {
		return err
	}
	if cfg.GoogleMapsAPIKey == "" {
		log.Warn("GOOGLE_MAPS_API_KEY is not set, addresses fall back to coordinates")
	}
	dispatcher := notify.NewExpoDispatcher(notify.Config{
		Host:        cfg.ExpoHost,
		AccessToken: cfg.ExpoAccessToken,
		Timeout:     cfg.PushTimeout,
		ChunkSize:   cfg.PushChunkSize,
	}, log)

	// Инициализация сервисов
	responderService := service.NewResponderService(responderRepo, log)
	if err := responderService.Seed(ctx, cfg.ResponderTokens); err != nil {
		return fmt.Errorf("failed to seed responders: %w", err)
	}
	dispatchService := service.NewDispatchService(
		requestRepo, responderRepo, geocoder, dispatcher, publisher, dispatchMetrics, log, cfg,
	)

	// Напоминания о заявках без ответа
	if cfg.ReminderSchedule != "" {
		reminders, err := scheduler.NewReminderScheduler(dispatchService, cfg.ReminderSchedule, cfg.ReminderAfter, log)
		if err != nil {
			return err
		}
		reminders.Start(ctx)
		defer reminders.Stop()
	}

	// Инициализация хэндлеров
	handler := v1.NewHandler(dispatchService, responderService, log, cfg)
	submitLimit, err := v1.NewRateLimitMiddleware(cfg.RateLimit, limiterStore, log)
	if err != nil {
		return err
	}
	if len(cfg.APIKeys) == 0 {
		log.Warn("API_KEYS is not set, operator routes are not protected")
	}

	// Настройка Gin роутера
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log), dispatchMetrics.Middleware())
	handler.RegisterRoutes(router, submitLimit)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Запуск сервера в горутине
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	select {
	case err := <-serverErr:
		return fmt.Errorf("error starting HTTP server: %w", err)
	case <-ctx.Done():
	}
	log.Info("Received shutdown signal, shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server gracefully stopped")
	return nil
}

func newRedisLimiterStore(client *goredis.Client) (limiter.Store, error) {
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   "map_medical_limiter",
		MaxRetry: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit store: %w", err)
	}
	return store, nil
}

// requestLogger пишет одну JSON-строку на запрос
func requestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		}).Info("HTTP request")
	}
}
