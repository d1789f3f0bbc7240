package handler

import (
	"errors"
	"net/http"

	"marketplace/pkg/logger"
	"marketplace/reviews-service/internal/app/reviews/entity"
	"marketplace/reviews-service/internal/app/reviews/service"

	"github.com/gin-gonic/gin"
)

type ReviewHandler struct {
	reviewService service.ReviewServiceInterface
}

func NewReviewHandler(reviewService service.ReviewServiceInterface) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
	}
}

// CreateReview POST /reviews
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	var req entity.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Message: "Invalid request body"})
		return
	}

	review, err := h.reviewService.CreateReview(c.Request.Context(), actorFromContext(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, review)
}

// GetProductReviews GET /reviews?productId= - только одобренные отзывы
func (h *ReviewHandler) GetProductReviews(c *gin.Context) {
	productID := c.Query("productId")

	reviews, err := h.reviewService.ListReviewsForProduct(c.Request.Context(), productID, entity.ReviewStatusApproved)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entity.ReviewListResponse{Reviews: reviews, Total: len(reviews)})
}

// GetModerationQueue GET /reviews/admin?status=
func (h *ReviewHandler) GetModerationQueue(c *gin.Context) {
	status := entity.ReviewStatus(c.Query("status"))

	reviews, err := h.reviewService.ListReviewsForModeration(c.Request.Context(), actorFromContext(c), status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entity.ReviewListResponse{Reviews: reviews, Total: len(reviews)})
}

// ModerateReview PATCH /reviews
func (h *ReviewHandler) ModerateReview(c *gin.Context) {
	var req entity.ModerateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Message: "Invalid request body"})
		return
	}

	review, err := h.reviewService.UpdateModerationStatus(c.Request.Context(), actorFromContext(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, review)
}

// DeleteReview DELETE /reviews/:id
func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	if err := h.reviewService.DeleteReview(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entity.MessageResponse{Message: "Review deleted successfully"})
}

// respondError переводит ошибки сервиса в HTTP ответ.
// Детали внутренних ошибок только в логах.
func (h *ReviewHandler) respondError(c *gin.Context, err error) {
	var validationErr *entity.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Message: "Validation failed", Errors: validationErr.Errors})
	case errors.Is(err, service.ErrDuplicateReview):
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Message: err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, entity.ErrorResponse{Message: "Authentication required"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, entity.ErrorResponse{Message: "Insufficient permissions"})
	case errors.Is(err, service.ErrReviewNotFound):
		c.JSON(http.StatusNotFound, entity.ErrorResponse{Message: "Review not found"})
	case errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, entity.ErrorResponse{Message: "Product not found"})
	default:
		logger.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Str(logger.RequestIDKey, c.GetString(logger.RequestIDKey)).
			Msg("Request failed")
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Message: "Internal server error"})
	}
}
