package entity

import "time"

// Типы событий отзывов, которые публикует reviews-service
const (
	EventTypeReviewCreated   = "REVIEW_CREATED"
	EventTypeReviewModerated = "REVIEW_MODERATED"
	EventTypeReviewDeleted   = "REVIEW_DELETED"
)

// ReviewEvent событие отзыва из Kafka, ключ сообщения - product_id
type ReviewEvent struct {
	EventType  string    `json:"event_type"`
	ReviewID   string    `json:"review_id"`
	ProductID  string    `json:"product_id"`
	CustomerID string    `json:"customer_id"`
	Rating     int       `json:"rating"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// IsKnown проверяет, что тип события влияет на рейтинг
func (e *ReviewEvent) IsKnown() bool {
	switch e.EventType {
	case EventTypeReviewCreated, EventTypeReviewModerated, EventTypeReviewDeleted:
		return true
	}
	return false
}

// ReconcileReport итог плановой сверки рейтингов
type ReconcileReport struct {
	Products int           `json:"products"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}
