package service

import (
	"context"

	"marketplace/pkg/rating"
	"marketplace/reviews-service/internal/app/reviews/entity"
)

type ReviewServiceInterface interface {
	CreateReview(ctx context.Context, actor entity.Actor, req *entity.CreateReviewRequest) (*entity.Review, error)
	ListReviewsForProduct(ctx context.Context, productID string, status entity.ReviewStatus) ([]entity.ReviewView, error)
	ListReviewsForModeration(ctx context.Context, actor entity.Actor, status entity.ReviewStatus) ([]entity.ReviewView, error)
	UpdateModerationStatus(ctx context.Context, actor entity.Actor, req *entity.ModerateReviewRequest) (*entity.Review, error)
	DeleteReview(ctx context.Context, actor entity.Actor, reviewID string) error
}

// RatingAggregator пересчитывает рейтинг товара после изменения отзывов
type RatingAggregator interface {
	Recompute(ctx context.Context, productID string) (*rating.Summary, error)
}
