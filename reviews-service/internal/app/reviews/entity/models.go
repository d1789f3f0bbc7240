package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReviewStatus статус модерации отзыва
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// IsValid проверяет, что статус входит в допустимый набор
func (s ReviewStatus) IsValid() bool {
	switch s {
	case ReviewStatusPending, ReviewStatusApproved, ReviewStatusRejected:
		return true
	}
	return false
}

// Роли, которые выдает Auth Service
const (
	RoleCustomer = "customer"
	RoleSeller   = "seller"
	RoleAdmin    = "admin"
)

// Review представляет отзыв покупателя о товаре.
// product_id и customer_id не меняются после создания.
type Review struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ProductID      string             `json:"productId" bson:"product_id"`
	CustomerID     string             `json:"customerId" bson:"customer_id"`
	Rating         int                `json:"rating" bson:"rating"`
	Comment        string             `json:"comment" bson:"comment"`
	Status         ReviewStatus       `json:"status" bson:"status"`
	ModerationNote string             `json:"moderationNote,omitempty" bson:"moderation_note,omitempty"`
	CreatedAt      time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updated_at"`
}

// Product - проекция товара из каталога
type Product struct {
	ID   string `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name"`
}

func (Product) TableName() string {
	return "products"
}

// Customer - отображаемые данные покупателя из Auth Service
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Actor - пользователь текущего запроса, полученный из JWT
type Actor struct {
	UserID string
	Role   string
}

// IsAuthenticated проверяет, что запрос пришел с сессией
func (a Actor) IsAuthenticated() bool {
	return a.UserID != ""
}

// Типы событий отзывов для Kafka
const (
	EventTypeReviewCreated   = "REVIEW_CREATED"
	EventTypeReviewModerated = "REVIEW_MODERATED"
	EventTypeReviewDeleted   = "REVIEW_DELETED"
)

// ReviewEvent событие отзыва для Kafka, ключ сообщения - product_id
type ReviewEvent struct {
	EventType  string       `json:"event_type"`
	ReviewID   string       `json:"review_id"`
	ProductID  string       `json:"product_id"`
	CustomerID string       `json:"customer_id"`
	Rating     int          `json:"rating"`
	Status     ReviewStatus `json:"status"`
	Timestamp  time.Time    `json:"timestamp"`
}
