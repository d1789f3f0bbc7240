package repository

import (
	"context"
	"errors"

	"marketplace/reviews-service/internal/app/reviews/entity"
)

// Имя сервиса в метриках БД
const serviceName = "reviews-service"

var (
	// Стандартные ошибки репозитория для обработки в service layer
	ErrReviewNotFound  = errors.New("review not found")
	ErrDuplicateReview = errors.New("review for this product already exists")
	ErrProductNotFound = errors.New("product not found")
)

// ReviewRepository определяет методы для работы с отзывами в MongoDB
type ReviewRepository interface {
	// EnsureIndexes создает индексы, включая уникальный (product_id, customer_id)
	EnsureIndexes(ctx context.Context) error
	// Create сохраняет отзыв; нарушение уникальности возвращает ErrDuplicateReview
	Create(ctx context.Context, review *entity.Review) error
	GetByID(ctx context.Context, id string) (*entity.Review, error)
	ExistsByProductAndCustomer(ctx context.Context, productID, customerID string) (bool, error)
	// ListByProduct возвращает отзывы товара, пустой status - все статусы
	ListByProduct(ctx context.Context, productID string, status entity.ReviewStatus) ([]entity.Review, error)
	// ListByStatus возвращает отзывы всех товаров, пустой status - все статусы
	ListByStatus(ctx context.Context, status entity.ReviewStatus) ([]entity.Review, error)
	// UpdateModeration атомарно меняет статус; note == nil оставляет прежнюю заметку
	UpdateModeration(ctx context.Context, id string, status entity.ReviewStatus, note *string) (*entity.Review, error)
	// Delete удаляет отзыв и возвращает удаленный документ
	Delete(ctx context.Context, id string) (*entity.Review, error)
}

// ProductRepository читает товары из БД Catalog Service
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]entity.Product, error)
}

// CustomerRepository читает отображаемые данные покупателей
type CustomerRepository interface {
	// GetByIDs возвращает найденных покупателей, неизвестные id пропускаются
	GetByIDs(ctx context.Context, ids []string) (map[string]entity.Customer, error)
}
