package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config содержит все настройки Ratings Worker Service.
// Redis и параметры блокировки должны совпадать с reviews-service,
// иначе пересчеты одного товара не сериализуются между сервисами.
type Config struct {
	MongoDB    MongoDBConfig
	Catalog    CatalogConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Rating     RatingConfig
	Cron       CronConfig
	HealthPort string `env:"HEALTH_PORT" envDefault:"8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	// Пустой адрес - логи только в stdout
	LogstashAddr string `env:"LOGSTASH_ADDR"`
}

// MongoDBConfig - коллекция отзывов reviews-service
type MongoDBConfig struct {
	URI      string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"MONGODB_DATABASE" envDefault:"reviews_service"`
}

// CatalogConfig - БД каталога, куда записывается рейтинг
type CatalogConfig struct {
	DatabaseURL string `env:"CATALOG_DATABASE_URL" envDefault:"host=localhost port=5432 user=postgres password=postgres dbname=catalog_service sslmode=disable"`
}

type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     string `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"3"`
}

// KafkaConfig - подписка на топик review_events
type KafkaConfig struct {
	Brokers  []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	Topic    string   `env:"KAFKA_TOPIC" envDefault:"review_events"`
	GroupID  string   `env:"KAFKA_GROUP_ID" envDefault:"ratings-worker-group"`
	MinBytes int      `env:"KAFKA_MIN_BYTES" envDefault:"1"`
	MaxBytes int      `env:"KAFKA_MAX_BYTES" envDefault:"10000000"`
	// MaxAttempts попыток обработки события до отказа (offset не коммитится)
	MaxAttempts int `env:"KAFKA_MAX_ATTEMPTS" envDefault:"3"`
}

type RatingConfig struct {
	LockTTL  time.Duration `env:"RATING_LOCK_TTL" envDefault:"10s"`
	LockWait time.Duration `env:"RATING_LOCK_WAIT" envDefault:"3s"`
	Timeout  time.Duration `env:"RATING_TIMEOUT" envDefault:"5s"`
}

// CronConfig - расписание с секундами, например "0 */30 * * * *" каждые 30 минут
type CronConfig struct {
	ReconcileRatings string `env:"CRON_RECONCILE_RATINGS" envDefault:"0 */30 * * * *"`
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.Kafka.MaxAttempts < 1 {
		return errors.New("KAFKA_MAX_ATTEMPTS must be at least 1")
	}
	if c.Rating.LockTTL <= c.Rating.Timeout {
		return errors.New("RATING_LOCK_TTL must be greater than RATING_TIMEOUT")
	}
	return nil
}

// Address возвращает адрес Redis в формате host:port
func (c *RedisConfig) Address() string {
	return c.Host + ":" + c.Port
}

// HealthAddress адрес HTTP сервера healthcheck и метрик
func (c *Config) HealthAddress() string {
	return ":" + c.HealthPort
}
