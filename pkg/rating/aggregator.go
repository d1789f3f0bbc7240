// Package rating пересчитывает денормализованный рейтинг товара
// (average_rating, review_count) по одобренным отзывам.
package rating

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/pkg/logger"
	"marketplace/pkg/metrics"

	"github.com/sony/gobreaker/v2"
)

// ApprovedStatus - единственный статус отзыва, который учитывается в рейтинге
const ApprovedStatus = "approved"

const lockKeyPrefix = "rating:lock:"

var (
	// ErrProductNotFound - товар удален, записывать рейтинг некуда
	ErrProductNotFound = errors.New("product not found")
	// ErrLockNotAcquired - другой пересчет того же товара не завершился за отведенное время
	ErrLockNotAcquired = errors.New("rating lock not acquired")
)

// Summary результат пересчета рейтинга
type Summary struct {
	ProductID     string  `json:"product_id"`
	AverageRating float64 `json:"average_rating"`
	ReviewCount   int     `json:"review_count"`
}

// ReviewStats считает агрегаты по одобренным отзывам товара
type ReviewStats interface {
	ApprovedStats(ctx context.Context, productID string) (average float64, count int, err error)
}

// ProductRatingWriter записывает агрегаты в карточку товара.
// Если товара нет, возвращает ErrProductNotFound.
type ProductRatingWriter interface {
	UpdateRating(ctx context.Context, productID string, average float64, count int) error
}

// Unlocker снимает ранее взятую блокировку
type Unlocker func(ctx context.Context) error

// Locker выдает блокировку по ключу, общую для всех экземпляров сервисов
type Locker interface {
	Lock(ctx context.Context, key string) (Unlocker, error)
}

// Options параметры агрегатора
type Options struct {
	// Service имя сервиса для метрик
	Service string
	// Timeout ограничивает весь пересчет, включая ожидание блокировки
	Timeout time.Duration
}

// Aggregator пересчитывает рейтинг товара. Пересчеты одного товара
// сериализуются через Locker, чтения и запись выполняются под блокировкой.
type Aggregator struct {
	stats    ReviewStats
	products ProductRatingWriter
	locker   Locker
	breaker  *gobreaker.CircuitBreaker[struct{}]
	service  string
	timeout  time.Duration
}

func NewAggregator(stats ReviewStats, products ProductRatingWriter, locker Locker, opts Options) *Aggregator {
	return &Aggregator{
		stats:    stats,
		products: products,
		locker:   locker,
		breaker:  newProductWriteBreaker(opts.Service + "-product-rating-write"),
		service:  opts.Service,
		timeout:  opts.Timeout,
	}
}

// Recompute пересчитывает рейтинг товара и записывает его в карточку товара.
// Идемпотентен: повторный вызов без изменений отзывов дает тот же результат.
// Отсутствие товара не считается ошибкой.
func (a *Aggregator) Recompute(ctx context.Context, productID string) (*Summary, error) {
	start := time.Now()
	defer func() {
		metrics.RatingRecomputeDuration.WithLabelValues(a.service).Observe(time.Since(start).Seconds())
	}()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	unlock, err := a.locker.Lock(ctx, lockKeyPrefix+productID)
	if err != nil {
		a.record("failed")
		return nil, fmt.Errorf("failed to lock product %s: %w", productID, err)
	}
	defer a.release(ctx, productID, unlock)

	average, count, err := a.stats.ApprovedStats(ctx, productID)
	if err != nil {
		a.record("failed")
		return nil, fmt.Errorf("failed to compute review stats: %w", err)
	}

	summary := &Summary{ProductID: productID, AverageRating: average, ReviewCount: count}

	_, err = a.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, a.products.UpdateRating(ctx, productID, average, count)
	})
	switch {
	case errors.Is(err, ErrProductNotFound):
		logger.Warn().
			Str("product_id", productID).
			Msg("Product not found, rating update skipped")
		a.record("product_missing")
		return summary, nil
	case err != nil:
		a.record("failed")
		return nil, fmt.Errorf("failed to write product rating: %w", err)
	}

	a.record("success")
	logger.Debug().
		Str("product_id", productID).
		Float64("average_rating", average).
		Int("review_count", count).
		Msg("Product rating recomputed")

	return summary, nil
}

func (a *Aggregator) release(ctx context.Context, productID string, unlock Unlocker) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()

	if err := unlock(releaseCtx); err != nil {
		logger.Warn().
			Err(err).
			Str("product_id", productID).
			Msg("Failed to release rating lock")
	}
}

func (a *Aggregator) record(result string) {
	metrics.RatingRecomputes.WithLabelValues(a.service, result).Inc()
}
