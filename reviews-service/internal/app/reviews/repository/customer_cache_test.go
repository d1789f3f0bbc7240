package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"marketplace/reviews-service/internal/app/reviews/entity"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// stubCustomerRepository источник данных за кешем
type stubCustomerRepository struct {
	mock.Mock
}

func (m *stubCustomerRepository) GetByIDs(ctx context.Context, ids []string) (map[string]entity.Customer, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]entity.Customer), args.Error(1)
}

// CustomerCacheTestSuite тестовый suite для Redis кеша покупателей
type CustomerCacheTestSuite struct {
	suite.Suite
	miniRedis *miniredis.Miniredis
	client    *redis.Client
	next      *stubCustomerRepository
	repo      CustomerRepository
}

func TestCustomerCacheSuite(t *testing.T) {
	suite.Run(t, new(CustomerCacheTestSuite))
}

func (s *CustomerCacheTestSuite) SetupSuite() {
	var err error
	s.miniRedis, err = miniredis.Run()
	require.NoError(s.T(), err)

	s.client = redis.NewClient(&redis.Options{
		Addr: s.miniRedis.Addr(),
	})
}

func (s *CustomerCacheTestSuite) SetupTest() {
	s.miniRedis.FlushAll()
	s.next = new(stubCustomerRepository)
	s.repo = NewCachedCustomerRepository(s.next, s.client, 10*time.Minute)
}

func (s *CustomerCacheTestSuite) TearDownSuite() {
	s.client.Close()
	s.miniRedis.Close()
}

func (s *CustomerCacheTestSuite) TestGetByIDs_MissLoadsAndCaches() {
	ctx := context.Background()
	layla := entity.Customer{ID: customerA, Name: "Layla", Image: "layla.png"}

	s.next.On("GetByIDs", mock.Anything, []string{customerA}).
		Return(map[string]entity.Customer{customerA: layla}, nil).Once()

	customers, err := s.repo.GetByIDs(ctx, []string{customerA})

	s.NoError(err)
	s.Equal(layla, customers[customerA])
	s.True(s.miniRedis.Exists(customerCachePrefix + customerA))
	s.Equal(10*time.Minute, s.miniRedis.TTL(customerCachePrefix+customerA))

	// Второе чтение обслуживается из кеша
	customers, err = s.repo.GetByIDs(ctx, []string{customerA})

	s.NoError(err)
	s.Equal(layla, customers[customerA])
	s.next.AssertNumberOfCalls(s.T(), "GetByIDs", 1)
}

func (s *CustomerCacheTestSuite) TestGetByIDs_PartialHit() {
	ctx := context.Background()
	layla := entity.Customer{ID: customerA, Name: "Layla"}
	omar := entity.Customer{ID: customerB, Name: "Omar"}

	data, _ := json.Marshal(layla)
	s.Require().NoError(s.miniRedis.Set(customerCachePrefix+customerA, string(data)))

	s.next.On("GetByIDs", mock.Anything, []string{customerB}).
		Return(map[string]entity.Customer{customerB: omar}, nil)

	customers, err := s.repo.GetByIDs(ctx, []string{customerA, customerB})

	s.NoError(err)
	s.Len(customers, 2)
	s.Equal("Layla", customers[customerA].Name)
	s.Equal("Omar", customers[customerB].Name)
	s.next.AssertExpectations(s.T())
}

func (s *CustomerCacheTestSuite) TestGetByIDs_UnknownCustomerNotCached() {
	ctx := context.Background()

	s.next.On("GetByIDs", mock.Anything, []string{customerB}).
		Return(map[string]entity.Customer{}, nil)

	customers, err := s.repo.GetByIDs(ctx, []string{customerB})

	s.NoError(err)
	s.Empty(customers)
	s.False(s.miniRedis.Exists(customerCachePrefix + customerB))
}

func (s *CustomerCacheTestSuite) TestGetByIDs_CorruptedEntryReloaded() {
	ctx := context.Background()
	s.Require().NoError(s.miniRedis.Set(customerCachePrefix+customerA, "{not json"))

	s.next.On("GetByIDs", mock.Anything, []string{customerA}).
		Return(map[string]entity.Customer{customerA: {ID: customerA, Name: "Layla"}}, nil)

	customers, err := s.repo.GetByIDs(ctx, []string{customerA})

	s.NoError(err)
	s.Equal("Layla", customers[customerA].Name)
}

func (s *CustomerCacheTestSuite) TestGetByIDs_SourceError() {
	ctx := context.Background()

	s.next.On("GetByIDs", mock.Anything, []string{customerA}).
		Return(nil, errors.New("users db down"))

	customers, err := s.repo.GetByIDs(ctx, []string{customerA})

	s.Nil(customers)
	s.Error(err)
}

func (s *CustomerCacheTestSuite) TestGetByIDs_RedisDownFallsBackToSource() {
	ctx := context.Background()

	broken := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer broken.Close()
	repo := NewCachedCustomerRepository(s.next, broken, time.Minute)

	s.next.On("GetByIDs", mock.Anything, []string{customerA}).
		Return(map[string]entity.Customer{customerA: {ID: customerA, Name: "Layla"}}, nil)

	customers, err := repo.GetByIDs(ctx, []string{customerA})

	s.NoError(err)
	s.Equal("Layla", customers[customerA].Name)
}

func (s *CustomerCacheTestSuite) TestGetByIDs_Empty() {
	customers, err := s.repo.GetByIDs(context.Background(), nil)

	s.NoError(err)
	s.Empty(customers)
	s.next.AssertNotCalled(s.T(), "GetByIDs", mock.Anything, mock.Anything)
}
