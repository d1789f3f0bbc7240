package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"marketplace/ratings-worker-service/internal/app/ratings-worker/entity"
	"marketplace/ratings-worker-service/internal/app/ratings-worker/service"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const productID = "8b0f3c1e-6a53-4d55-9a44-3f4e51c1d001"

// MockRatingService мок для RatingServiceInterface
type MockRatingService struct {
	mock.Mock
}

func (m *MockRatingService) ProcessReviewEvent(ctx context.Context, event *entity.ReviewEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockRatingService) ReconcileAll(ctx context.Context) (*entity.ReconcileReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ReconcileReport), args.Error(1)
}

// fakeReader отдает сообщения из канала и запоминает коммиты
type fakeReader struct {
	messages chan kafka.Message
	fetchErr chan error

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		messages: make(chan kafka.Message, 10),
		fetchErr: make(chan error, 1),
	}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case err := <-r.fetchErr:
		return kafka.Message{}, err
	case msg := <-r.messages:
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) Stats() kafka.ReaderStats {
	return kafka.ReaderStats{Topic: "review_events", Lag: 7}
}

func (r *fakeReader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *fakeReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func eventMessage(t *testing.T, offset int64, event entity.ReviewEvent) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(event.ProductID), Value: value, Offset: offset}
}

func startConsumer(t *testing.T, reader *fakeReader, svc *MockRatingService) *KafkaConsumer {
	t.Helper()
	consumer := newKafkaConsumer(reader, ConsumerConfig{
		Topic:       "review_events",
		GroupID:     "ratings-worker-group",
		MaxAttempts: 3,
	}, svc)
	consumer.retryBackoff = time.Millisecond
	consumer.Start(context.Background())
	t.Cleanup(consumer.Stop)
	return consumer
}

// ===================== NewKafkaConsumer Tests =====================

func TestNewKafkaConsumer(t *testing.T) {
	// Arrange
	svc := new(MockRatingService)

	// Act
	consumer := NewKafkaConsumer(ConsumerConfig{
		Brokers:     []string{"broker1:9092", "broker2:9092"},
		Topic:       "review_events",
		GroupID:     "test-group",
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxAttempts: 0,
	}, svc)

	// Assert
	assert.NotNil(t, consumer.reader)
	assert.Equal(t, 1, consumer.maxAttempts)
	assert.NotNil(t, consumer.stopChan)
	assert.NotNil(t, consumer.doneChan)

	// Cleanup
	consumer.reader.Close()
}

// ===================== consume Tests =====================

func TestKafkaConsumer_ProcessesAndCommits(t *testing.T) {
	// Arrange
	reader := newFakeReader()
	svc := new(MockRatingService)
	svc.On("ProcessReviewEvent", mock.Anything, mock.MatchedBy(func(e *entity.ReviewEvent) bool {
		return e.EventType == entity.EventTypeReviewCreated && e.ProductID == productID
	})).Return(nil)

	startConsumer(t, reader, svc)

	// Act
	reader.messages <- eventMessage(t, 42, entity.ReviewEvent{
		EventType: entity.EventTypeReviewCreated,
		ProductID: productID,
		Rating:    5,
	})

	// Assert
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]int64{42}, reader.committedOffsets())
	}, time.Second, 5*time.Millisecond)
	svc.AssertExpectations(t)
}

func TestKafkaConsumer_MalformedMessageCommitted(t *testing.T) {
	reader := newFakeReader()
	svc := new(MockRatingService)
	startConsumer(t, reader, svc)

	reader.messages <- kafka.Message{Value: []byte("{not json"), Offset: 3}

	assert.Eventually(t, func() bool {
		return len(reader.committedOffsets()) == 1
	}, time.Second, 5*time.Millisecond)
	svc.AssertNotCalled(t, "ProcessReviewEvent", mock.Anything, mock.Anything)
}

func TestKafkaConsumer_InvalidEventCommittedWithoutRetry(t *testing.T) {
	reader := newFakeReader()
	svc := new(MockRatingService)
	svc.On("ProcessReviewEvent", mock.Anything, mock.Anything).
		Return(fmt.Errorf("%w: empty product_id", service.ErrInvalidEvent)).Once()
	startConsumer(t, reader, svc)

	reader.messages <- eventMessage(t, 5, entity.ReviewEvent{EventType: entity.EventTypeReviewDeleted})

	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]int64{5}, reader.committedOffsets())
	}, time.Second, 5*time.Millisecond)
	svc.AssertNumberOfCalls(t, "ProcessReviewEvent", 1)
}

func TestKafkaConsumer_RetriesTransientFailure(t *testing.T) {
	reader := newFakeReader()
	svc := new(MockRatingService)
	svc.On("ProcessReviewEvent", mock.Anything, mock.Anything).Return(errors.New("lock busy")).Twice()
	svc.On("ProcessReviewEvent", mock.Anything, mock.Anything).Return(nil).Once()
	startConsumer(t, reader, svc)

	reader.messages <- eventMessage(t, 9, entity.ReviewEvent{EventType: entity.EventTypeReviewModerated, ProductID: productID})

	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]int64{9}, reader.committedOffsets())
	}, time.Second, 5*time.Millisecond)
	svc.AssertNumberOfCalls(t, "ProcessReviewEvent", 3)
}

func TestKafkaConsumer_ExhaustedRetriesNotCommitted(t *testing.T) {
	reader := newFakeReader()
	svc := new(MockRatingService)
	svc.On("ProcessReviewEvent", mock.Anything, mock.MatchedBy(func(e *entity.ReviewEvent) bool {
		return e.ReviewID == "failing"
	})).Return(errors.New("catalog unavailable"))
	svc.On("ProcessReviewEvent", mock.Anything, mock.MatchedBy(func(e *entity.ReviewEvent) bool {
		return e.ReviewID == "next"
	})).Return(nil)
	startConsumer(t, reader, svc)

	reader.messages <- eventMessage(t, 10, entity.ReviewEvent{EventType: entity.EventTypeReviewCreated, ReviewID: "failing", ProductID: productID})
	reader.messages <- eventMessage(t, 11, entity.ReviewEvent{EventType: entity.EventTypeReviewCreated, ReviewID: "next", ProductID: productID})

	// Следующее сообщение обрабатывается, упавшее не коммитится
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]int64{11}, reader.committedOffsets())
	}, time.Second, 5*time.Millisecond)
	svc.AssertNumberOfCalls(t, "ProcessReviewEvent", 4)
}

func TestKafkaConsumer_ContinuesAfterFetchError(t *testing.T) {
	reader := newFakeReader()
	svc := new(MockRatingService)
	svc.On("ProcessReviewEvent", mock.Anything, mock.Anything).Return(nil)
	startConsumer(t, reader, svc)

	reader.fetchErr <- errors.New("broker not available")
	reader.messages <- eventMessage(t, 1, entity.ReviewEvent{EventType: entity.EventTypeReviewCreated, ProductID: productID})

	assert.Eventually(t, func() bool {
		return len(reader.committedOffsets()) == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestKafkaConsumer_StopClosesReader(t *testing.T) {
	reader := newFakeReader()
	consumer := newKafkaConsumer(reader, ConsumerConfig{Topic: "review_events"}, new(MockRatingService))
	consumer.Start(context.Background())

	done := make(chan struct{})
	go func() {
		consumer.Stop()
		consumer.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.True(t, reader.isClosed())
}

func TestKafkaConsumer_GetStats(t *testing.T) {
	consumer := newKafkaConsumer(newFakeReader(), ConsumerConfig{Topic: "review_events"}, new(MockRatingService))

	stats := consumer.GetStats()

	assert.Equal(t, "review_events", stats.Topic)
	assert.Equal(t, int64(7), stats.Lag)
}
