package worker

import (
	"context"
	"time"

	"github.com/spasuite/booking-api/internal/repository"

	"github.com/spasuite/booking-api/pkg/logger"
)

// LogCleanupWorker prunes old message-log rows so the audit table does not
// grow without bound
type LogCleanupWorker struct {
	repo          repository.NotificationRepository
	retentionDays int
	interval      time.Duration
	logger        *logger.Logger
}

func NewLogCleanupWorker(repo repository.NotificationRepository, retentionDays int, interval time.Duration, logger *logger.Logger) *LogCleanupWorker {
	return &LogCleanupWorker{
		repo:          repo,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger,
	}
}

func (w *LogCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -w.retentionDays)
			deleted, err := w.repo.DeleteLogsBefore(ctx, cutoff)
			if err != nil {
				w.logger.Error(err, "message log cleanup failed")
				continue
			}
			if deleted > 0 {
				w.logger.Info("message log cleanup complete", "deleted", deleted)
			}
		}
	}
}
