package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace/pkg/logger"
	"marketplace/pkg/metrics"
	"marketplace/reviews-service/internal/app/reviews/entity"

	"github.com/redis/go-redis/v9"
)

const customerCachePrefix = "customer:display:"

// cachedCustomerRepository кеширует отображаемые данные покупателей в Redis.
// Отзывы и рейтинги не кешируются.
type cachedCustomerRepository struct {
	next   CustomerRepository
	client *redis.Client
	ttl    time.Duration
}

// NewCachedCustomerRepository оборачивает репозиторий покупателей кешем
func NewCachedCustomerRepository(next CustomerRepository, client *redis.Client, ttl time.Duration) CustomerRepository {
	return &cachedCustomerRepository{
		next:   next,
		client: client,
		ttl:    ttl,
	}
}

func (r *cachedCustomerRepository) GetByIDs(ctx context.Context, ids []string) (map[string]entity.Customer, error) {
	customers := make(map[string]entity.Customer, len(ids))
	if len(ids) == 0 {
		return customers, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = customerCachePrefix + id
	}

	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpMGet)
	values, err := r.client.MGet(ctx, keys...).Result()
	timer.ObserveDuration()
	if err != nil {
		// Redis недоступен - читаем напрямую из БД
		metrics.RecordRedisError(serviceName, metrics.RedisOpMGet)
		logger.Warn().Err(err).Msg("Customer cache unavailable, reading from database")
		return r.next.GetByIDs(ctx, ids)
	}

	missing := make([]string, 0)
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			metrics.RecordCacheMiss(serviceName, customerCachePrefix)
			missing = append(missing, ids[i])
			continue
		}

		var c entity.Customer
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			metrics.RecordCacheMiss(serviceName, customerCachePrefix)
			missing = append(missing, ids[i])
			continue
		}

		metrics.RecordCacheHit(serviceName, customerCachePrefix)
		customers[ids[i]] = c
	}

	if len(missing) == 0 {
		return customers, nil
	}

	loaded, err := r.next.GetByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}

	if err := r.store(ctx, loaded); err != nil {
		logger.Warn().Err(err).Int("count", len(loaded)).Msg("Failed to cache customers")
	}

	for id, c := range loaded {
		customers[id] = c
	}
	return customers, nil
}

func (r *cachedCustomerRepository) store(ctx context.Context, customers map[string]entity.Customer) error {
	if len(customers) == 0 {
		return nil
	}

	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpSet)
	defer timer.ObserveDuration()

	pipe := r.client.Pipeline()
	for id, c := range customers {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal customer: %w", err)
		}
		pipe.Set(ctx, customerCachePrefix+id, data, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpSet)
		return fmt.Errorf("failed to execute pipeline: %w", err)
	}
	return nil
}
