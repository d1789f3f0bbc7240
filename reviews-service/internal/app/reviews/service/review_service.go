package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace/pkg/logger"
	"marketplace/pkg/metrics"
	"marketplace/reviews-service/internal/app/reviews/entity"
	"marketplace/reviews-service/internal/app/reviews/infrastructure"
	"marketplace/reviews-service/internal/app/reviews/repository"
)

// ReviewService обрабатывает бизнес-логику отзывов и модерации.
// Координирует MongoDB, каталог товаров, пересчет рейтинга и Kafka.
type ReviewService struct {
	reviewRepo    repository.ReviewRepository
	productRepo   repository.ProductRepository
	customerRepo  repository.CustomerRepository
	aggregator    RatingAggregator
	kafkaProducer infrastructure.MessagePublisher
}

// NewReviewService создает новый сервис отзывов с внедрением зависимостей
func NewReviewService(
	reviewRepo repository.ReviewRepository,
	productRepo repository.ProductRepository,
	customerRepo repository.CustomerRepository,
	aggregator RatingAggregator,
	kafkaProducer infrastructure.MessagePublisher,
) *ReviewService {
	return &ReviewService{
		reviewRepo:    reviewRepo,
		productRepo:   productRepo,
		customerRepo:  customerRepo,
		aggregator:    aggregator,
		kafkaProducer: kafkaProducer,
	}
}

// CreateReview создает отзыв покупателя в статусе pending
// 1. Проверяет роль и форму запроса (до любой записи)
// 2. Проверяет товар и отсутствие предыдущего отзыва
// 3. Сохраняет отзыв в MongoDB
// 4. Пересчитывает рейтинг и отправляет REVIEW_CREATED
func (s *ReviewService) CreateReview(ctx context.Context, actor entity.Actor, req *entity.CreateReviewRequest) (*entity.Review, error) {
	if !actor.IsAuthenticated() {
		return nil, ErrUnauthorized
	}
	if actor.Role != entity.RoleCustomer {
		return nil, ErrForbidden
	}

	req.Normalize()
	if err := entity.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.productRepo.GetByID(ctx, req.ProductID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	// Быстрая проверка, окончательно дубликат ловит уникальный индекс
	exists, err := s.reviewRepo.ExistsByProductAndCustomer(ctx, req.ProductID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing review: %w", err)
	}
	if exists {
		return nil, ErrDuplicateReview
	}

	review := &entity.Review{
		ProductID:  req.ProductID,
		CustomerID: actor.UserID,
		Rating:     req.Rating,
		Comment:    req.Comment,
		Status:     entity.ReviewStatusPending,
	}

	if err := s.reviewRepo.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicateReview) {
			return nil, ErrDuplicateReview
		}
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	metrics.ReviewsCreated.Inc()
	metrics.ReviewsRating.Observe(float64(review.Rating))

	logger.Info().
		Str("review_id", review.ID.Hex()).
		Str("product_id", review.ProductID).
		Str("customer_id", review.CustomerID).
		Int("rating", review.Rating).
		Msg("Review created")

	s.refreshRating(ctx, review.ProductID)
	s.publishReviewEvent(ctx, entity.EventTypeReviewCreated, review)

	return review, nil
}

// ListReviewsForProduct получает отзывы товара, новые первыми.
// Публичная страница товара передает status=approved.
func (s *ReviewService) ListReviewsForProduct(ctx context.Context, productID string, status entity.ReviewStatus) ([]entity.ReviewView, error) {
	if err := entity.ValidateProductID(productID); err != nil {
		return nil, err
	}
	if err := entity.ValidateStatusFilter(status); err != nil {
		return nil, err
	}

	reviews, err := s.reviewRepo.ListByProduct(ctx, productID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviews: %w", err)
	}

	views := toViews(reviews)
	s.attachCustomers(ctx, views)

	return views, nil
}

// ListReviewsForModeration получает отзывы всех товаров для модератора
func (s *ReviewService) ListReviewsForModeration(ctx context.Context, actor entity.Actor, status entity.ReviewStatus) ([]entity.ReviewView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := entity.ValidateStatusFilter(status); err != nil {
		return nil, err
	}

	reviews, err := s.reviewRepo.ListByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviews: %w", err)
	}

	views := toViews(reviews)
	s.attachCustomers(ctx, views)
	s.attachProducts(ctx, views)

	return views, nil
}

// UpdateModerationStatus применяет решение модератора.
// Переход разрешен из любого статуса в approved или rejected.
func (s *ReviewService) UpdateModerationStatus(ctx context.Context, actor entity.Actor, req *entity.ModerateReviewRequest) (*entity.Review, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	req.Normalize()
	if err := entity.Validate(req); err != nil {
		return nil, err
	}

	review, err := s.reviewRepo.UpdateModeration(ctx, req.ReviewID, req.Status, req.ModerationNote)
	if err != nil {
		if errors.Is(err, repository.ErrReviewNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to update review status: %w", err)
	}

	metrics.ReviewsModerated.WithLabelValues(string(review.Status)).Inc()

	logger.Info().
		Str("review_id", review.ID.Hex()).
		Str("product_id", review.ProductID).
		Str("status", string(review.Status)).
		Str("moderator_id", actor.UserID).
		Msg("Review moderated")

	s.refreshRating(ctx, review.ProductID)
	s.publishReviewEvent(ctx, entity.EventTypeReviewModerated, review)

	return review, nil
}

// DeleteReview удаляет отзыв (только администратор)
func (s *ReviewService) DeleteReview(ctx context.Context, actor entity.Actor, reviewID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := entity.ValidateReviewID(reviewID); err != nil {
		return err
	}

	review, err := s.reviewRepo.Delete(ctx, reviewID)
	if err != nil {
		if errors.Is(err, repository.ErrReviewNotFound) {
			return ErrReviewNotFound
		}
		return fmt.Errorf("failed to delete review: %w", err)
	}

	metrics.ReviewsModerated.WithLabelValues("deleted").Inc()

	logger.Info().
		Str("review_id", reviewID).
		Str("product_id", review.ProductID).
		Str("moderator_id", actor.UserID).
		Msg("Review deleted")

	s.refreshRating(ctx, review.ProductID)
	s.publishReviewEvent(ctx, entity.EventTypeReviewDeleted, review)

	return nil
}

func requireAdmin(actor entity.Actor) error {
	if !actor.IsAuthenticated() {
		return ErrUnauthorized
	}
	if actor.Role != entity.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// refreshRating пересчитывает рейтинг товара. Ошибка не отменяет
// уже выполненную запись отзыва: ее исправит следующий пересчет
// или плановая сверка в ratings-worker.
func (s *ReviewService) refreshRating(ctx context.Context, productID string) {
	// Клиент мог разорвать соединение, пересчет все равно доводим до конца
	ctx = context.WithoutCancel(ctx)

	summary, err := s.aggregator.Recompute(ctx, productID)
	if err != nil {
		logger.Error().
			Err(err).
			Str("product_id", productID).
			Msg("Failed to recompute product rating")
		return
	}

	logger.Debug().
		Str("product_id", productID).
		Float64("average_rating", summary.AverageRating).
		Int("review_count", summary.ReviewCount).
		Msg("Product rating refreshed")
}

// publishReviewEvent отправляет событие об отзыве в Kafka.
// Ошибки Kafka не критичны, отзыв уже сохранен.
func (s *ReviewService) publishReviewEvent(ctx context.Context, eventType string, review *entity.Review) {
	event := entity.ReviewEvent{
		EventType:  eventType,
		ReviewID:   review.ID.Hex(),
		ProductID:  review.ProductID,
		CustomerID: review.CustomerID,
		Rating:     review.Rating,
		Status:     review.Status,
		Timestamp:  time.Now().UTC(),
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Str("review_id", event.ReviewID).Msg("Failed to marshal review event")
		return
	}

	// Ключ = product_id: события одного товара идут по порядку
	if err := s.kafkaProducer.PublishMessage(ctx, event.ProductID, eventData); err != nil {
		logger.Warn().
			Err(err).
			Str("event_type", eventType).
			Str("review_id", event.ReviewID).
			Msg("Failed to publish review event")
	}
}

func toViews(reviews []entity.Review) []entity.ReviewView {
	views := make([]entity.ReviewView, len(reviews))
	for i := range reviews {
		views[i] = entity.ReviewView{Review: reviews[i]}
	}
	return views
}

// attachCustomers добавляет имя и аватар автора. Справочник покупателей
// недоступен - отзывы возвращаются без customer.
func (s *ReviewService) attachCustomers(ctx context.Context, views []entity.ReviewView) {
	ids := uniqueIDs(views, func(v entity.ReviewView) string { return v.CustomerID })
	if len(ids) == 0 {
		return
	}

	customers, err := s.customerRepo.GetByIDs(ctx, ids)
	if err != nil {
		logger.Warn().Err(err).Int("count", len(ids)).Msg("Failed to load customer display data")
		return
	}

	for i := range views {
		if c, ok := customers[views[i].CustomerID]; ok {
			customer := c
			views[i].Customer = &customer
		}
	}
}

// attachProducts добавляет название товара для списка модерации
func (s *ReviewService) attachProducts(ctx context.Context, views []entity.ReviewView) {
	ids := uniqueIDs(views, func(v entity.ReviewView) string { return v.ProductID })
	if len(ids) == 0 {
		return
	}

	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		logger.Warn().Err(err).Int("count", len(ids)).Msg("Failed to load product names")
		return
	}

	for i := range views {
		if p, ok := products[views[i].ProductID]; ok {
			views[i].Product = &entity.ProductSummary{ID: p.ID, Name: p.Name}
		}
	}
}

func uniqueIDs(views []entity.ReviewView, key func(entity.ReviewView) string) []string {
	seen := make(map[string]struct{}, len(views))
	ids := make([]string, 0, len(views))
	for _, v := range views {
		id := key(v)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
