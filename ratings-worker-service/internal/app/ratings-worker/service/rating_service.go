package service

import (
	"context"
	"fmt"
	"time"

	"marketplace/pkg/logger"
	"marketplace/pkg/metrics"
	"marketplace/ratings-worker-service/internal/app/ratings-worker/entity"
	"marketplace/ratings-worker-service/internal/app/ratings-worker/repository"
)

// RatingService догоняет рейтинги товаров вне HTTP-запросов reviews-service:
// по событиям из Kafka и по расписанию.
type RatingService struct {
	reviewRepo repository.ReviewRepository
	aggregator RatingAggregator
}

// NewRatingService создает новый сервис рейтингов
func NewRatingService(reviewRepo repository.ReviewRepository, aggregator RatingAggregator) *RatingService {
	return &RatingService{
		reviewRepo: reviewRepo,
		aggregator: aggregator,
	}
}

// ProcessReviewEvent пересчитывает рейтинг товара из события.
// Рейтинг всегда считается заново по коллекции отзывов, поэтому порядок
// и повторы событий на результат не влияют.
func (s *RatingService) ProcessReviewEvent(ctx context.Context, event *entity.ReviewEvent) error {
	if !event.IsKnown() {
		metrics.WorkerEventsProcessed.WithLabelValues("skipped").Inc()
		logger.Debug().
			Str("event_type", event.EventType).
			Str("review_id", event.ReviewID).
			Msg("Skipping unknown review event")
		return nil
	}

	if event.ProductID == "" {
		metrics.WorkerEventsProcessed.WithLabelValues("skipped").Inc()
		return fmt.Errorf("%w: empty product_id in %s", ErrInvalidEvent, event.EventType)
	}

	summary, err := s.aggregator.Recompute(ctx, event.ProductID)
	if err != nil {
		metrics.WorkerEventsProcessed.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to recompute rating for product %s: %w", event.ProductID, err)
	}

	metrics.WorkerEventsProcessed.WithLabelValues("success").Inc()

	logger.Info().
		Str("event_type", event.EventType).
		Str("review_id", event.ReviewID).
		Str("product_id", summary.ProductID).
		Float64("average_rating", summary.AverageRating).
		Int("review_count", summary.ReviewCount).
		Msg("Product rating updated from review event")

	return nil
}

// ReconcileAll пересчитывает рейтинг каждого товара с отзывами.
// Ошибка одного товара не останавливает сверку остальных.
func (s *RatingService) ReconcileAll(ctx context.Context) (*entity.ReconcileReport, error) {
	start := time.Now()

	productIDs, err := s.reviewRepo.DistinctProductIDs(ctx)
	if err != nil {
		metrics.WorkerReconcileRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	report := &entity.ReconcileReport{Products: len(productIDs)}

	for i, productID := range productIDs {
		// Остановка воркера: оставшиеся товары считаются не сверенными
		if ctx.Err() != nil {
			report.Failed += len(productIDs) - i
			break
		}

		if _, err := s.aggregator.Recompute(ctx, productID); err != nil {
			report.Failed++
			logger.Warn().
				Err(err).
				Str("product_id", productID).
				Msg("Failed to reconcile product rating")
		}
	}

	report.Duration = time.Since(start)

	status := "success"
	if report.Failed > 0 {
		status = "partial"
	}
	metrics.WorkerReconcileRuns.WithLabelValues(status).Inc()

	logger.Info().
		Int("products", report.Products).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("Rating reconciliation finished")

	return report, nil
}
