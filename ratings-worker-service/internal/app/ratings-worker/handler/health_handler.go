package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"marketplace/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/gorm"
)

// MongoPinger - проверка доступности MongoDB (*mongo.Client)
type MongoPinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// ConsumerStats - статистика Kafka consumer
type ConsumerStats interface {
	GetStats() kafka.ReaderStats
}

// lagWarningThreshold - отставание consumer, после которого healthcheck предупреждает
const lagWarningThreshold = 1000

type HealthCheckHandler struct {
	catalogDB   *gorm.DB
	redisClient *redis.Client
	mongo       MongoPinger
	consumer    ConsumerStats
}

func NewHealthCheckHandler(
	catalogDB *gorm.DB,
	redisClient *redis.Client,
	mongo MongoPinger,
	consumer ConsumerStats,
) *HealthCheckHandler {
	return &HealthCheckHandler{
		catalogDB:   catalogDB,
		redisClient: redisClient,
		mongo:       mongo,
		consumer:    consumer,
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}

func (h *HealthCheckHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	overallStatus := "healthy"

	for name, check := range h.dependencies() {
		if err := check(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			overallStatus = "unhealthy"
		} else {
			checks[name] = "healthy"
		}
	}

	// Отставание consumer не делает сервис нездоровым, сверка догонит рейтинги
	if lag := h.consumer.GetStats().Lag; lag > lagWarningThreshold {
		checks["kafka_consumer"] = "warning: lag " + strconv.FormatInt(lag, 10)
		logger.Warn().Int64("lag", lag).Msg("Kafka consumer is lagging")
	} else {
		checks["kafka_consumer"] = "healthy"
	}

	response := HealthResponse{
		Status:    overallStatus,
		Checks:    checks,
		Timestamp: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")

	if overallStatus != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error().Err(err).Msg("Failed to encode health response")
	}
}

func (h *HealthCheckHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for name, check := range h.dependencies() {
		if err := check(ctx); err != nil {
			http.Error(w, name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func (h *HealthCheckHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("alive"))
}

func (h *HealthCheckHandler) dependencies() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"catalog_database": h.checkCatalogDB,
		"redis":            h.checkRedis,
		"mongodb":          h.checkMongo,
	}
}

func (h *HealthCheckHandler) checkCatalogDB(ctx context.Context) error {
	sqlDB, err := h.catalogDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (h *HealthCheckHandler) checkRedis(ctx context.Context) error {
	return h.redisClient.Ping(ctx).Err()
}

func (h *HealthCheckHandler) checkMongo(ctx context.Context) error {
	return h.mongo.Ping(ctx, readpref.Primary())
}

func (h *HealthCheckHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/health/readiness", h.Readiness)
	mux.HandleFunc("/health/liveness", h.Liveness)
}
