package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"marketplace/pkg/logger"
	"marketplace/pkg/metrics"
	"marketplace/ratings-worker-service/internal/app/ratings-worker/entity"
	"marketplace/ratings-worker-service/internal/app/ratings-worker/service"

	"github.com/segmentio/kafka-go"
)

const serviceName = "ratings-worker"

// MessageReader - часть kafka.Reader, которую использует consumer
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Stats() kafka.ReaderStats
}

// KafkaConsumer обрабатывает события из Kafka топика review_events
type KafkaConsumer struct {
	reader       MessageReader
	ratingSvc    service.RatingServiceInterface
	topic        string
	groupID      string
	maxAttempts  int
	retryBackoff time.Duration
	stopOnce     sync.Once
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// ConsumerConfig параметры подписки
type ConsumerConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	MinBytes    int
	MaxBytes    int
	MaxAttempts int
}

// NewKafkaConsumer создает новый Kafka consumer
func NewKafkaConsumer(cfg ConsumerConfig, ratingSvc service.RatingServiceInterface) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
		// Новая группа читает с начала: пропущенные события обработает сверка,
		// но повторный пересчет дешевле
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: 1 * time.Second,
	})

	return newKafkaConsumer(reader, cfg, ratingSvc)
}

func newKafkaConsumer(reader MessageReader, cfg ConsumerConfig, ratingSvc service.RatingServiceInterface) *KafkaConsumer {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &KafkaConsumer{
		reader:       reader,
		ratingSvc:    ratingSvc,
		topic:        cfg.Topic,
		groupID:      cfg.GroupID,
		maxAttempts:  maxAttempts,
		retryBackoff: 500 * time.Millisecond,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start запускает consumer в отдельной горутине
func (c *KafkaConsumer) Start(ctx context.Context) {
	logger.Info().
		Str("topic", c.topic).
		Str("group_id", c.groupID).
		Msg("Starting Kafka consumer")

	go c.consume(ctx)
}

// Stop останавливает consumer и дожидается завершения текущего сообщения
func (c *KafkaConsumer) Stop() {
	c.stopOnce.Do(func() {
		logger.Info().Msg("Stopping Kafka consumer...")
		close(c.stopChan)
		<-c.doneChan
		if err := c.reader.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing Kafka reader")
		}
		logger.Info().Msg("Kafka consumer stopped")
	})
}

// consume читает и обрабатывает сообщения из Kafka
func (c *KafkaConsumer) consume(ctx context.Context) {
	defer close(c.doneChan)

	// Остановка прерывает ожидание FetchMessage и паузы между попытками,
	// но не начатый пересчет
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stopChan:
			cancel()
		case <-loopCtx.Done():
		}
	}()

	for {
		if loopCtx.Err() != nil {
			return
		}

		readCtx, readCancel := context.WithTimeout(loopCtx, 10*time.Second)
		message, err := c.reader.FetchMessage(readCtx)
		readCancel()

		if err != nil {
			if loopCtx.Err() != nil {
				return
			}
			// Таймаут ожидания - нормальная ситуация при пустом топике
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}

			metrics.RecordKafkaError(serviceName, c.topic, "fetch")
			logger.Error().Err(err).Str("topic", c.topic).Msg("Error fetching message")
			if !c.sleep(loopCtx, time.Second) {
				return
			}
			continue
		}

		start := time.Now()
		if err := c.handleMessage(ctx, loopCtx, message); err != nil {
			// Offset не коммитим, рейтинг товара исправит плановая сверка
			metrics.RecordKafkaError(serviceName, c.topic, "process")
			logger.Error().
				Err(err).
				Int("partition", message.Partition).
				Int64("offset", message.Offset).
				Str("key", string(message.Key)).
				Msg("Error processing message")
			continue
		}

		metrics.RecordKafkaMessageConsumed(serviceName, c.topic, c.groupID, time.Since(start))

		if err := c.reader.CommitMessages(context.WithoutCancel(ctx), message); err != nil {
			metrics.RecordKafkaError(serviceName, c.topic, "commit")
			logger.Error().Err(err).Int64("offset", message.Offset).Msg("Error committing message")
		}
	}
}

// handleMessage разбирает и обрабатывает одно сообщение. Сообщения,
// которые невозможно обработать в принципе, считаются обработанными.
// Пауза между попытками прерывается через waitCtx.
func (c *KafkaConsumer) handleMessage(ctx, waitCtx context.Context, message kafka.Message) error {
	var event entity.ReviewEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		metrics.RecordKafkaError(serviceName, c.topic, "decode")
		logger.Warn().
			Err(err).
			Int("partition", message.Partition).
			Int64("offset", message.Offset).
			Msg("Dropping malformed review event")
		return nil
	}

	logger.Debug().
		Str("event_type", event.EventType).
		Str("review_id", event.ReviewID).
		Str("product_id", event.ProductID).
		Int("partition", message.Partition).
		Int64("offset", message.Offset).
		Msg("Received review event")

	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err = c.ratingSvc.ProcessReviewEvent(ctx, &event)
		if err == nil {
			return nil
		}
		if errors.Is(err, service.ErrInvalidEvent) {
			logger.Warn().Err(err).Int64("offset", message.Offset).Msg("Dropping invalid review event")
			return nil
		}
		if attempt < c.maxAttempts && !c.sleep(waitCtx, c.retryBackoff*time.Duration(attempt)) {
			break
		}
	}

	return fmt.Errorf("failed to process review event after %d attempts: %w", c.maxAttempts, err)
}

// sleep ждет d или остановки, false - если consumer останавливается
func (c *KafkaConsumer) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// GetStats возвращает статистику consumer
func (c *KafkaConsumer) GetStats() kafka.ReaderStats {
	return c.reader.Stats()
}
