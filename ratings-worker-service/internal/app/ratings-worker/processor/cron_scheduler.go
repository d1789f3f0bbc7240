package processor

import (
	"context"

	"marketplace/pkg/logger"
	"marketplace/ratings-worker-service/internal/app/ratings-worker/service"

	"github.com/robfig/cron/v3"
)

// CronScheduler периодически сверяет рейтинги всех товаров с отзывами
type CronScheduler struct {
	cron      *cron.Cron
	ratingSvc service.RatingServiceInterface
}

func NewCronScheduler(ratingSvc service.RatingServiceInterface) *CronScheduler {
	cronLog := newCronLogger()
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cronLog),
		// Долгая сверка не должна наслаиваться на следующую
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	return &CronScheduler{
		cron:      c,
		ratingSvc: ratingSvc,
	}
}

// Start регистрирует задачу сверки и запускает начальную сверку в фоне
func (s *CronScheduler) Start(ctx context.Context, schedule string) error {
	logger.Info().Str("schedule", schedule).Msg("Starting cron scheduler")

	_, err := s.cron.AddFunc(schedule, func() {
		logger.Info().Msg("Cron job triggered: reconciling product ratings")
		s.reconcile(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.Info().Msg("Cron scheduler started")

	go func() {
		logger.Info().Msg("Performing initial rating reconciliation...")
		s.reconcile(ctx)
	}()

	return nil
}

func (s *CronScheduler) reconcile(ctx context.Context) {
	report, err := s.ratingSvc.ReconcileAll(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Rating reconciliation failed")
		return
	}

	if report.Failed > 0 {
		logger.Warn().
			Int("products", report.Products).
			Int("failed", report.Failed).
			Msg("Rating reconciliation completed with failures")
	}
}

// Stop останавливает планировщик и дожидается выполняющейся задачи
func (s *CronScheduler) Stop() {
	logger.Info().Msg("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info().Msg("Cron scheduler stopped")
}

func (s *CronScheduler) GetEntries() []cron.Entry {
	return s.cron.Entries()
}
