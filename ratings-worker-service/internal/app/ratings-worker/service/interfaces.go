package service

import (
	"context"

	"marketplace/pkg/rating"
	"marketplace/ratings-worker-service/internal/app/ratings-worker/entity"
)

// RatingServiceInterface определяет методы для поддержания рейтингов товаров
type RatingServiceInterface interface {
	// ProcessReviewEvent пересчитывает рейтинг товара из события отзыва
	ProcessReviewEvent(ctx context.Context, event *entity.ReviewEvent) error
	// ReconcileAll пересчитывает рейтинг всех товаров, у которых есть отзывы
	ReconcileAll(ctx context.Context) (*entity.ReconcileReport, error)
}

// RatingAggregator пересчитывает рейтинг одного товара под блокировкой
type RatingAggregator interface {
	Recompute(ctx context.Context, productID string) (*rating.Summary, error)
}
