package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/pkg/metrics"
	"marketplace/reviews-service/internal/app/reviews/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const reviewsCollection = "reviews"

// Новые отзывы первыми, _id разрешает совпадение времени создания
var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

type reviewRepository struct {
	collection *mongo.Collection
}

// NewReviewRepository создает новый репозиторий отзывов
func NewReviewRepository(db *mongo.Database) ReviewRepository {
	return &reviewRepository{
		collection: db.Collection(reviewsCollection),
	}
}

// EnsureIndexes создает индексы коллекции. Уникальный индекс - основная
// гарантия "один отзыв на товар от покупателя", без него сервис не стартует.
func (r *reviewRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "product_id", Value: 1},
				{Key: "customer_id", Value: 1},
			},
			Options: options.Index().SetName("product_customer_unique").SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "product_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("product_status_created_idx"),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("status_created_idx"),
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create review indexes: %w", err)
	}
	return nil
}

// Create создает новый отзыв в MongoDB
func (r *reviewRepository) Create(ctx context.Context, review *entity.Review) error {
	now := time.Now().UTC()
	review.CreatedAt = now
	review.UpdatedAt = now

	timer := metrics.NewDbTimer(serviceName, metrics.DbOpInsert, reviewsCollection)
	result, err := r.collection.InsertOne(ctx, review)
	timer.Done(err)
	if err != nil {
		// Проигравший в гонке двух одновременных созданий попадает сюда
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateReview
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		review.ID = oid
	}

	return nil
}

// GetByID получает отзыв по ID
func (r *reviewRepository) GetByID(ctx context.Context, id string) (*entity.Review, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrReviewNotFound
	}

	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, reviewsCollection)
	var review entity.Review
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&review)
	if errors.Is(err, mongo.ErrNoDocuments) {
		timer.Done(nil)
		return nil, ErrReviewNotFound
	}
	timer.Done(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	return &review, nil
}

// ExistsByProductAndCustomer быстрая проверка дубликата до вставки
func (r *reviewRepository) ExistsByProductAndCustomer(ctx context.Context, productID, customerID string) (bool, error) {
	filter := bson.M{"product_id": productID, "customer_id": customerID}

	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, reviewsCollection)
	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	timer.Done(err)
	if err != nil {
		return false, fmt.Errorf("failed to check existing review: %w", err)
	}

	return count > 0, nil
}

// ListByProduct получает отзывы товара
func (r *reviewRepository) ListByProduct(ctx context.Context, productID string, status entity.ReviewStatus) ([]entity.Review, error) {
	filter := bson.M{"product_id": productID}
	if status != "" {
		filter["status"] = status
	}
	return r.find(ctx, filter)
}

// ListByStatus получает отзывы для модерации
func (r *reviewRepository) ListByStatus(ctx context.Context, status entity.ReviewStatus) ([]entity.Review, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return r.find(ctx, filter)
}

func (r *reviewRepository) find(ctx context.Context, filter bson.M) ([]entity.Review, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, reviewsCollection)
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		timer.Done(err)
		return nil, fmt.Errorf("failed to find reviews: %w", err)
	}
	defer cursor.Close(ctx)

	reviews := make([]entity.Review, 0)
	err = cursor.All(ctx, &reviews)
	timer.Done(err)
	if err != nil {
		return nil, fmt.Errorf("failed to decode reviews: %w", err)
	}

	return reviews, nil
}

// UpdateModeration меняет статус одним FindOneAndUpdate.
// Одновременные решения по одному отзыву: побеждает последняя запись.
func (r *reviewRepository) UpdateModeration(ctx context.Context, id string, status entity.ReviewStatus, note *string) (*entity.Review, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrReviewNotFound
	}

	set := bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if note != nil {
		if *note == "" {
			update["$unset"] = bson.M{"moderation_note": ""}
		} else {
			set["moderation_note"] = *note
		}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	timer := metrics.NewDbTimer(serviceName, metrics.DbOpUpdate, reviewsCollection)
	var review entity.Review
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objectID}, update, opts).Decode(&review)
	if errors.Is(err, mongo.ErrNoDocuments) {
		timer.Done(nil)
		return nil, ErrReviewNotFound
	}
	timer.Done(err)
	if err != nil {
		return nil, fmt.Errorf("failed to update review status: %w", err)
	}

	return &review, nil
}

// Delete удаляет отзыв из MongoDB
func (r *reviewRepository) Delete(ctx context.Context, id string) (*entity.Review, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrReviewNotFound
	}

	timer := metrics.NewDbTimer(serviceName, metrics.DbOpDelete, reviewsCollection)
	var review entity.Review
	err = r.collection.FindOneAndDelete(ctx, bson.M{"_id": objectID}).Decode(&review)
	if errors.Is(err, mongo.ErrNoDocuments) {
		timer.Done(nil)
		return nil, ErrReviewNotFound
	}
	timer.Done(err)
	if err != nil {
		return nil, fmt.Errorf("failed to delete review: %w", err)
	}

	return &review, nil
}
