package repository

import (
	"context"
	"errors"
	"fmt"

	"marketplace/pkg/metrics"
	"marketplace/reviews-service/internal/app/reviews/entity"

	"gorm.io/gorm"
)

// productRepository читает таблицу products Catalog Service через GORM.
// Остальные поля товара принадлежат каталогу.
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository создает новый репозиторий товаров
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

// GetByID получает товар по ID
func (r *productRepository) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "products")

	var product entity.Product
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&product)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		timer.Done(nil)
		return nil, ErrProductNotFound
	}
	timer.Done(result.Error)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get product: %w", result.Error)
	}

	return &product, nil
}

// GetByIDs получает товары пачкой для списка модерации
func (r *productRepository) GetByIDs(ctx context.Context, ids []string) (map[string]entity.Product, error) {
	products := make(map[string]entity.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "products")

	var rows []entity.Product
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows)
	timer.Done(result.Error)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get products: %w", result.Error)
	}

	for _, p := range rows {
		products[p.ID] = p
	}
	return products, nil
}
