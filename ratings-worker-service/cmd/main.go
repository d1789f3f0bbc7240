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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"marketplace/pkg/logger"
	"marketplace/pkg/rating"
	"marketplace/ratings-worker-service/internal/app/ratings-worker/config"
	"marketplace/ratings-worker-service/internal/app/ratings-worker/handler"
	"marketplace/ratings-worker-service/internal/app/ratings-worker/processor"
	"marketplace/ratings-worker-service/internal/app/ratings-worker/repository"
	"marketplace/ratings-worker-service/internal/app/ratings-worker/service"
)

const serviceName = "ratings-worker"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(serviceName, cfg.LogLevel)

	if cfg.LogstashAddr != "" {
		if err := logger.InitLogstash(cfg.LogstashAddr, serviceName, cfg.LogLevel); err != nil {
			logger.Warn().Err(err).Msg("Failed to connect to Logstash, using stdout only")
		}
	}

	logger.Info().Msg("Starting Ratings Worker Service...")

	// Отменяется при остановке: прерывает плановую сверку между товарами
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === ПОДКЛЮЧЕНИЕ К MONGODB ===
	// Коллекция отзывов reviews-service, только чтение
	mongoClient, err := connectMongoDB(cfg.MongoDB)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer func() {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer disconnectCancel()
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			logger.Error().Err(err).Msg("Error disconnecting from MongoDB")
		}
	}()
	db := mongoClient.Database(cfg.MongoDB.Database)
	logger.Info().Str("database", cfg.MongoDB.Database).Msg("Connected to MongoDB")

	// === ПОДКЛЮЧЕНИЕ К БД КАТАЛОГА ===
	catalogDB, err := connectCatalogDB(cfg.Catalog)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to catalog database")
	}
	if sqlDB, err := catalogDB.DB(); err == nil {
		defer sqlDB.Close()
	}
	logger.Info().Msg("Connected to catalog database")

	// === ПОДКЛЮЧЕНИЕ К REDIS ===
	// Та же БД, что у reviews-service: блокировки пересчета общие
	redisClient, err := connectRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()
	logger.Info().Str("address", cfg.Redis.Address()).Int("db", cfg.Redis.DB).Msg("Connected to Redis")

	// === СЕРВИСЫ ===
	aggregator := rating.NewAggregator(
		rating.NewMongoReviewStats(db.Collection("reviews"), serviceName),
		rating.NewGormProductStore(catalogDB, serviceName),
		rating.NewRedisLocker(redisClient, cfg.Rating.LockTTL, cfg.Rating.LockWait, serviceName),
		rating.Options{Service: serviceName, Timeout: cfg.Rating.Timeout},
	)
	reviewRepo := repository.NewReviewRepository(db)
	ratingSvc := service.NewRatingService(reviewRepo, aggregator)

	// === KAFKA CONSUMER ===
	kafkaConsumer := processor.NewKafkaConsumer(processor.ConsumerConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.Topic,
		GroupID:     cfg.Kafka.GroupID,
		MinBytes:    cfg.Kafka.MinBytes,
		MaxBytes:    cfg.Kafka.MaxBytes,
		MaxAttempts: cfg.Kafka.MaxAttempts,
	}, ratingSvc)
	kafkaConsumer.Start(ctx)

	// === CRON SCHEDULER ===
	cronScheduler := processor.NewCronScheduler(ratingSvc)
	if err := cronScheduler.Start(ctx, cfg.Cron.ReconcileRatings); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.Cron.ReconcileRatings).Msg("Failed to start cron scheduler")
	}

	// === HEALTHCHECK И МЕТРИКИ ===
	healthHandler := handler.NewHealthCheckHandler(catalogDB, redisClient, mongoClient, kafkaConsumer)

	mux := http.NewServeMux()
	healthHandler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:              cfg.HealthAddress(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("address", cfg.HealthAddress()).Msg("Starting healthcheck HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	logger.Info().
		Str("topic", cfg.Kafka.Topic).
		Str("group_id", cfg.Kafka.GroupID).
		Str("reconcile_schedule", cfg.Cron.ReconcileRatings).
		Msg("Ratings Worker Service is running")

	// === GRACEFUL SHUTDOWN ===
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Ratings Worker Service...")

	// Consumer дообрабатывает текущее сообщение, затем прерываем сверку
	kafkaConsumer.Stop()
	cancel()
	cronScheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server forced to shutdown")
	}

	logger.Info().Msg("Ratings Worker Service stopped gracefully")
}

func connectMongoDB(cfg config.MongoDBConfig) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(cfg.URI)

	var err error
	for i := 0; i < 10; i++ {
		var client *mongo.Client
		client, err = tryConnectMongoDB(clientOptions)
		if err == nil {
			return client, nil
		}

		logger.Warn().Int("attempt", i+1).Err(err).Msg("Failed to connect to MongoDB, retrying...")
		time.Sleep(3 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect after 10 attempts: %w", err)
}

func tryConnectMongoDB(clientOptions *options.ClientOptions) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return client, nil
}

// connectCatalogDB подключается к БД каталога для записи рейтинга
func connectCatalogDB(cfg config.CatalogConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	var db *gorm.DB
	var err error

	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gormConfig)
		if err == nil {
			sqlDB, sqlErr := db.DB()
			if sqlErr != nil {
				err = sqlErr
			} else if pingErr := sqlDB.Ping(); pingErr != nil {
				err = pingErr
			} else {
				sqlDB.SetMaxOpenConns(10)
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetConnMaxLifetime(5 * time.Minute)
				sqlDB.SetConnMaxIdleTime(1 * time.Minute)
				return db, nil
			}
		}
		logger.Warn().Int("attempt", i+1).Err(err).Msg("Failed to connect to catalog database, retrying...")
		time.Sleep(3 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect after 10 attempts: %w", err)
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
