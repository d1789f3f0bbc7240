package service

import "errors"

var (
	// Ошибки бизнес-логики для обработки в handlers
	ErrUnauthorized    = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient permissions")
	ErrReviewNotFound  = errors.New("review not found")
	ErrProductNotFound = errors.New("product not found")
	ErrDuplicateReview = errors.New("you have already reviewed this product")
)
