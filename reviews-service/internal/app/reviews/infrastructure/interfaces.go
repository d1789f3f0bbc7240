package infrastructure

import "context"

// MessagePublisher интерфейс для отправки событий отзывов в Kafka
type MessagePublisher interface {
	PublishMessage(ctx context.Context, key string, value []byte) error
	Close() error
}
