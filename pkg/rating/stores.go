package rating

import (
	"context"
	"fmt"

	"marketplace/pkg/metrics"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// MongoReviewStats считает агрегаты одним aggregation pipeline по коллекции отзывов
type MongoReviewStats struct {
	collection *mongo.Collection
	service    string
}

func NewMongoReviewStats(collection *mongo.Collection, service string) *MongoReviewStats {
	return &MongoReviewStats{collection: collection, service: service}
}

type approvedStats struct {
	Average float64 `bson:"average"`
	Count   int     `bson:"count"`
}

func (s *MongoReviewStats) ApprovedStats(ctx context.Context, productID string) (float64, int, error) {
	timer := metrics.NewDbTimer(s.service, metrics.DbOpAggregate, s.collection.Name())

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "product_id", Value: productID},
			{Key: "status", Value: ApprovedStatus},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "average", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		timer.Done(err)
		return 0, 0, fmt.Errorf("failed to aggregate reviews: %w", err)
	}
	defer cursor.Close(ctx)

	var results []approvedStats
	err = cursor.All(ctx, &results)
	timer.Done(err)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode review stats: %w", err)
	}

	// Нет одобренных отзывов - рейтинг обнуляется
	if len(results) == 0 {
		return 0, 0, nil
	}
	return results[0].Average, results[0].Count, nil
}

// GormProductStore пишет рейтинг в таблицу products каталога
type GormProductStore struct {
	db      *gorm.DB
	service string
}

func NewGormProductStore(db *gorm.DB, service string) *GormProductStore {
	return &GormProductStore{db: db, service: service}
}

func (s *GormProductStore) UpdateRating(ctx context.Context, productID string, average float64, count int) error {
	timer := metrics.NewDbTimer(s.service, metrics.DbOpUpdate, "products")

	result := s.db.WithContext(ctx).
		Table("products").
		Where("id = ?", productID).
		UpdateColumns(map[string]interface{}{
			"average_rating": average,
			"review_count":   count,
		})
	timer.Done(result.Error)

	if result.Error != nil {
		return fmt.Errorf("failed to update product rating: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}
