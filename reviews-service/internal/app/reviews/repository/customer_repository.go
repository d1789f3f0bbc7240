package repository

import (
	"context"
	"fmt"

	"marketplace/pkg/metrics"
	"marketplace/reviews-service/internal/app/reviews/entity"

	"github.com/jackc/pgx/v5"
)

// PgxQuerier - часть pgxpool.Pool, нужная репозиторию (в тестах подменяется pgxmock)
type PgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// customerRepository читает таблицу users Auth Service
type customerRepository struct {
	db PgxQuerier
}

// NewCustomerRepository создает репозиторий покупателей
func NewCustomerRepository(db PgxQuerier) CustomerRepository {
	return &customerRepository{db: db}
}

// GetByIDs получает имя и аватар покупателей одним запросом
func (r *customerRepository) GetByIDs(ctx context.Context, ids []string) (map[string]entity.Customer, error) {
	customers := make(map[string]entity.Customer, len(ids))
	if len(ids) == 0 {
		return customers, nil
	}

	query := `
		SELECT id::text, name, COALESCE(avatar_url, '')
		FROM users
		WHERE id = ANY($1::uuid[])`

	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "users")
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		timer.Done(err)
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c entity.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Image); err != nil {
			timer.Done(err)
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers[c.ID] = c
	}

	err = rows.Err()
	timer.Done(err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate customers: %w", err)
	}

	return customers, nil
}
