package repository

import (
	"context"
	"fmt"

	"marketplace/pkg/metrics"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	serviceName       = "ratings-worker"
	reviewsCollection = "reviews"
)

type reviewRepository struct {
	collection *mongo.Collection
}

// NewReviewRepository создает репозиторий отзывов
func NewReviewRepository(db *mongo.Database) ReviewRepository {
	return &reviewRepository{
		collection: db.Collection(reviewsCollection),
	}
}

func (r *reviewRepository) DistinctProductIDs(ctx context.Context) ([]string, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, reviewsCollection)
	values, err := r.collection.Distinct(ctx, "product_id", bson.D{})
	timer.Done(err)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviewed products: %w", err)
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
