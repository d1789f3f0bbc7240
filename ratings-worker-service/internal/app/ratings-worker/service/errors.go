package service

import "errors"

var (
	// ErrInvalidEvent событие без product_id, повторная обработка не поможет
	ErrInvalidEvent = errors.New("invalid review event")
)
