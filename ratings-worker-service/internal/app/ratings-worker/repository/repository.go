package repository

import "context"

// ReviewRepository читает коллекцию отзывов reviews-service (только чтение)
type ReviewRepository interface {
	// DistinctProductIDs возвращает товары, у которых есть хотя бы один отзыв
	DistinctProductIDs(ctx context.Context) ([]string, error)
}
