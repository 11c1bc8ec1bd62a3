package services

import (
	"context"
	"microfinance/utils"
	"time"
)

// StatusRefresher пересчитывает статусы кредитов на дату
type StatusRefresher interface {
	RefreshStatuses(ctx context.Context, asOf time.Time) (RefreshResult, error)
}

// StatusScheduler периодически пересчитывает статусы кредитов
type StatusScheduler struct {
	loans    StatusRefresher
	interval time.Duration
	now      func() time.Time
}

// NewStatusScheduler создает новый экземпляр StatusScheduler
func NewStatusScheduler(loans StatusRefresher, interval time.Duration) *StatusScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &StatusScheduler{
		loans:    loans,
		interval: interval,
		now:      time.Now,
	}
}

// Run выполняет пересчет сразу и затем каждые interval до отмены ctx
func (s *StatusScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			utils.LogInfo("Планировщик статусов остановлен")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один пересчет, ошибка только логируется
func (s *StatusScheduler) RunOnce(ctx context.Context) {
	start := time.Now()
	_, err := s.loans.RefreshStatuses(ctx, s.now())
	utils.LogOperation("refresh_loan_statuses", start, err)
}
