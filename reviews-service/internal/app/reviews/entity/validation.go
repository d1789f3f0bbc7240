package entity

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError ошибка конкретного поля запроса
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError ошибка формы запроса, содержит ошибки по полям
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError создает ошибку с одним полем
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// В ошибках используем имена полей из JSON
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// Validate проверяет структуру по тегам validate и возвращает *ValidationError
func Validate(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	result := &ValidationError{}
	for _, fe := range validationErrors {
		result.Errors = append(result.Errors, FieldError{
			Field:   fe.Field(),
			Message: formatFieldError(fe),
		})
	}
	return result
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "uuid":
		return "must be a valid UUID"
	case "mongodb":
		return "must be a valid review id"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return "is invalid"
	}
}

// ValidateProductID проверяет идентификатор товара из query-параметра
func ValidateProductID(productID string) error {
	if productID == "" {
		return NewValidationError("productId", "is required")
	}
	if err := validate.Var(productID, "uuid"); err != nil {
		return NewValidationError("productId", "must be a valid UUID")
	}
	return nil
}

// ValidateReviewID проверяет идентификатор отзыва из пути запроса
func ValidateReviewID(reviewID string) error {
	if reviewID == "" {
		return NewValidationError("reviewId", "is required")
	}
	if err := validate.Var(reviewID, "mongodb"); err != nil {
		return NewValidationError("reviewId", "must be a valid review id")
	}
	return nil
}

// ValidateStatusFilter проверяет необязательный фильтр статуса
func ValidateStatusFilter(status ReviewStatus) error {
	if status != "" && !status.IsValid() {
		return NewValidationError("status", "must be one of: pending approved rejected")
	}
	return nil
}
