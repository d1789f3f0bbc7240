package mocks

import (
	"context"

	"marketplace/pkg/rating"

	"github.com/stretchr/testify/mock"
)

// MockReviewRepository мок для ReviewRepository
type MockReviewRepository struct {
	mock.Mock
}

func (m *MockReviewRepository) DistinctProductIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockRatingAggregator мок для пересчета рейтинга
type MockRatingAggregator struct {
	mock.Mock
}

func (m *MockRatingAggregator) Recompute(ctx context.Context, productID string) (*rating.Summary, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rating.Summary), args.Error(1)
}
