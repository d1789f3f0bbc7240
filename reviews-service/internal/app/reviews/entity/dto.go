package entity

import (
	"strings"
)

// CreateReviewRequest DTO для создания отзыва.
// Длина комментария считается в символах Unicode.
type CreateReviewRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment" validate:"required,min=10,max=500"`
}

// Normalize обрезает пробелы по краям комментария
func (r *CreateReviewRequest) Normalize() {
	r.ProductID = strings.TrimSpace(r.ProductID)
	r.Comment = strings.TrimSpace(r.Comment)
}

// ModerateReviewRequest DTO для решения модератора
type ModerateReviewRequest struct {
	ReviewID       string       `json:"reviewId" validate:"required,mongodb"`
	Status         ReviewStatus `json:"status" validate:"required,oneof=approved rejected"`
	ModerationNote *string      `json:"moderationNote,omitempty" validate:"omitempty,max=1000"`
}

// Normalize обрезает пробелы в заметке модератора
func (r *ModerateReviewRequest) Normalize() {
	r.ReviewID = strings.TrimSpace(r.ReviewID)
	if r.ModerationNote != nil {
		note := strings.TrimSpace(*r.ModerationNote)
		r.ModerationNote = &note
	}
}

// ReviewView - отзыв с прикрепленными данными для отображения
type ReviewView struct {
	Review
	Customer *Customer       `json:"customer,omitempty"`
	Product  *ProductSummary `json:"product,omitempty"`
}

// ProductSummary - название товара для списка модерации
type ProductSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ReviewListResponse DTO для списка отзывов
type ReviewListResponse struct {
	Reviews []ReviewView `json:"reviews"`
	Total   int          `json:"total"`
}

// ErrorResponse DTO для ошибок API
type ErrorResponse struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// MessageResponse DTO для простых ответов
type MessageResponse struct {
	Message string `json:"message"`
}
