package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/sl"
	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

// ClientRepository находит клиентов, которым пора сменить статус по датам программы.
type ClientRepository interface {
	ListReadyToStart(ctx context.Context, now time.Time) ([]models.CoachingClient, error)
	ListReadyToComplete(ctx context.Context, now time.Time) ([]models.CoachingClient, error)
}

// StatusUpdater меняет статус клиента с проверкой переходов.
type StatusUpdater interface {
	UpdateClientStatus(ctx context.Context, id string, status models.Status) (bool, error)
}

// Report — итог одного прохода планировщика.
type Report struct {
	Started   int
	Completed int
	Failed    int
}

// LifecycleService по расписанию запускает программы с наступившей датой
// начала и завершает программы с прошедшей датой окончания.
type LifecycleService struct {
	repo    ClientRepository
	updater StatusUpdater
	log     *slog.Logger
	now     func() time.Time
	cron    *cron.Cron
}

// NewLifecycleService создает новый экземпляр LifecycleService.
func NewLifecycleService(repo ClientRepository, updater StatusUpdater, log *slog.Logger, now func() time.Time) *LifecycleService {
	if now == nil {
		now = time.Now
	}
	return &LifecycleService{
		repo:    repo,
		updater: updater,
		log:     log,
		now:     now,
		cron:    cron.New(),
	}
}

// Schedule регистрирует проход по cron-выражению expr, например "@every 1h".
func (s *LifecycleService) Schedule(ctx context.Context, expr string) error {
	const op = "services.lifecycle.Schedule"
	_, err := s.cron.AddFunc(expr, func() {
		report, err := s.RunOnce(ctx)
		if err != nil {
			s.log.Error("lifecycle pass failed", sl.Err(err))
			return
		}
		if report != (Report{}) {
			s.log.Info("lifecycle pass finished",
				slog.Int("started", report.Started),
				slog.Int("completed", report.Completed),
				slog.Int("failed", report.Failed),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Start запускает планировщик в фоне.
func (s *LifecycleService) Start() {
	s.cron.Start()
	s.log.Info("lifecycle scheduler started")
}

// Stop останавливает планировщик и ждёт завершения текущего прохода, но не дольше ctx.
func (s *LifecycleService) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.log.Info("lifecycle scheduler stopped")
}

// RunOnce выполняет один проход: plan_ready -> active и active -> completed.
// Ошибка отдельного клиента не прерывает проход и учитывается в Report.Failed.
func (s *LifecycleService) RunOnce(ctx context.Context) (Report, error) {
	const op = "services.lifecycle.RunOnce"
	var report Report
	now := s.now()

	starting, err := s.repo.ListReadyToStart(ctx, now)
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}
	report.Started, report.Failed = s.advance(ctx, starting, models.StatusActive)

	finishing, err := s.repo.ListReadyToComplete(ctx, now)
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}
	done, failed := s.advance(ctx, finishing, models.StatusCompleted)
	report.Completed = done
	report.Failed += failed
	return report, nil
}

func (s *LifecycleService) advance(ctx context.Context, clients []models.CoachingClient, to models.Status) (ok, failed int) {
	for _, c := range clients {
		changed, err := s.updater.UpdateClientStatus(ctx, c.ID, to)
		switch {
		case errors.Is(err, models.ErrStatusChanged):
			// Клиента уже перевели вручную, пропускаем.
			s.log.Debug("client status changed concurrently", slog.String("client_id", c.ID))
		case err != nil:
			failed++
			s.log.Error("failed to advance client", slog.String("client_id", c.ID), slog.String("to", string(to)), sl.Err(err))
		case changed:
			ok++
		}
	}
	return ok, failed
}
