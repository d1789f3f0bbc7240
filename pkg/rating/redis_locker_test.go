package rating

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// RedisLockerTestSuite тестовый suite для блокировки на Redis
type RedisLockerTestSuite struct {
	suite.Suite
	miniRedis *miniredis.Miniredis
	client    *redis.Client
}

func TestRedisLockerSuite(t *testing.T) {
	suite.Run(t, new(RedisLockerTestSuite))
}

func (s *RedisLockerTestSuite) SetupSuite() {
	var err error
	s.miniRedis, err = miniredis.Run()
	require.NoError(s.T(), err)

	s.client = redis.NewClient(&redis.Options{
		Addr: s.miniRedis.Addr(),
	})
}

func (s *RedisLockerTestSuite) SetupTest() {
	s.miniRedis.FlushAll()
}

func (s *RedisLockerTestSuite) TearDownSuite() {
	s.client.Close()
	s.miniRedis.Close()
}

func (s *RedisLockerTestSuite) TestLock_AcquireAndRelease() {
	ctx := context.Background()
	locker := NewRedisLocker(s.client, 10*time.Second, 100*time.Millisecond, "test")

	unlock, err := locker.Lock(ctx, "rating:lock:p1")
	s.Require().NoError(err)
	s.True(s.miniRedis.Exists("rating:lock:p1"))
	s.Equal(10*time.Second, s.miniRedis.TTL("rating:lock:p1"))

	s.NoError(unlock(ctx))
	s.False(s.miniRedis.Exists("rating:lock:p1"))
}

func (s *RedisLockerTestSuite) TestLock_ContendedTimesOut() {
	ctx := context.Background()
	locker := NewRedisLocker(s.client, 10*time.Second, 150*time.Millisecond, "test")

	unlock, err := locker.Lock(ctx, "rating:lock:p1")
	s.Require().NoError(err)
	defer unlock(ctx)

	started := time.Now()
	_, err = locker.Lock(ctx, "rating:lock:p1")

	s.ErrorIs(err, ErrLockNotAcquired)
	s.GreaterOrEqual(time.Since(started), 150*time.Millisecond)
}

func (s *RedisLockerTestSuite) TestLock_DifferentKeysIndependent() {
	ctx := context.Background()
	locker := NewRedisLocker(s.client, 10*time.Second, 50*time.Millisecond, "test")

	unlockA, err := locker.Lock(ctx, "rating:lock:a")
	s.Require().NoError(err)
	unlockB, err := locker.Lock(ctx, "rating:lock:b")
	s.Require().NoError(err)

	s.NoError(unlockA(ctx))
	s.NoError(unlockB(ctx))
}

func (s *RedisLockerTestSuite) TestLock_WaitsForRelease() {
	ctx := context.Background()
	locker := NewRedisLocker(s.client, 10*time.Second, 2*time.Second, "test")

	unlock, err := locker.Lock(ctx, "rating:lock:p1")
	s.Require().NoError(err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = unlock(context.Background())
	}()

	second, err := locker.Lock(ctx, "rating:lock:p1")
	s.Require().NoError(err)
	s.NoError(second(ctx))
}

func (s *RedisLockerTestSuite) TestLock_ContextCancelled() {
	locker := NewRedisLocker(s.client, 10*time.Second, 5*time.Second, "test")

	unlock, err := locker.Lock(context.Background(), "rating:lock:p1")
	s.Require().NoError(err)
	defer unlock(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, "rating:lock:p1")
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *RedisLockerTestSuite) TestRelease_AfterExpiryDoesNotDeleteForeignLock() {
	ctx := context.Background()
	locker := NewRedisLocker(s.client, time.Second, 50*time.Millisecond, "test")

	staleUnlock, err := locker.Lock(ctx, "rating:lock:p1")
	s.Require().NoError(err)

	// Ключ истек, блокировку взял другой пересчет
	s.miniRedis.FastForward(2 * time.Second)
	freshUnlock, err := locker.Lock(ctx, "rating:lock:p1")
	s.Require().NoError(err)

	s.ErrorIs(staleUnlock(ctx), ErrLockExpired)
	s.True(s.miniRedis.Exists("rating:lock:p1"))

	s.NoError(freshUnlock(ctx))
}

func (s *RedisLockerTestSuite) TestLock_MutualExclusion() {
	ctx := context.Background()
	locker := NewRedisLocker(s.client, 10*time.Second, 5*time.Second, "test")

	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "rating:lock:p1")
			if err != nil {
				return
			}
			current := atomic.AddInt32(&inside, 1)
			for {
				seen := atomic.LoadInt32(&maxInside)
				if current <= seen || atomic.CompareAndSwapInt32(&maxInside, seen, current) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			_ = unlock(ctx)
		}()
	}
	wg.Wait()

	s.Equal(int32(1), atomic.LoadInt32(&maxInside))
}
