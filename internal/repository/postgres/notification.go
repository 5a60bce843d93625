package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/spasuite/booking-api/pkg/errors"

	"github.com/spasuite/booking-api/internal/model"
)

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{BaseRepository: NewBaseRepository(db)}
}

const jobColumns = `
	id, queue, payload, dedup_key, status, attempts, last_error, run_at,
	created_at, updated_at`

func (r *notificationRepository) Enqueue(ctx context.Context, job *model.NotificationJob) error {
	return r.enqueue(ctx, r.db, job)
}

func (r *notificationRepository) EnqueueTx(ctx context.Context, tx *sqlx.Tx, job *model.NotificationJob) error {
	return r.enqueue(ctx, tx, job)
}

func (r *notificationRepository) enqueue(ctx context.Context, ext sqlx.ExtContext, job *model.NotificationJob) error {
	query := `
		INSERT INTO notification_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	now := time.Now()
	job.Status = model.JobStatusPending
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.RunAt.IsZero() {
		job.RunAt = now
	}

	_, err := ext.ExecContext(ctx, query,
		job.ID, job.Queue, job.Payload, job.DedupKey, job.Status, job.Attempts,
		job.LastError, job.RunAt, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue notification job: %w", err)
	}
	return nil
}

// ClaimPending atomically claims due jobs for one dispatcher pass.
// SKIP LOCKED keeps concurrent workers from claiming the same row.
func (r *notificationRepository) ClaimPending(ctx context.Context, queue model.QueueName, limit int) ([]*model.NotificationJob, error) {
	query := `
		UPDATE notification_jobs
		SET status = 'processing', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM notification_jobs
			WHERE queue = $1 AND status = 'pending' AND run_at <= NOW()
			ORDER BY run_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns
	var jobs []*model.NotificationJob
	if err := r.db.SelectContext(ctx, &jobs, query, queue, limit); err != nil {
		return nil, fmt.Errorf("failed to claim pending jobs: %w", err)
	}
	return jobs, nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notification_jobs
		SET status = 'sent', updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark job sent: %w", err)
	}
	return checkAffected(result, "notification job")
}

func (r *notificationRepository) MarkRetry(ctx context.Context, id uuid.UUID, attempts int, lastError string, runAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notification_jobs
		SET status = 'pending', attempts = $1, last_error = $2, run_at = $3, updated_at = NOW()
		WHERE id = $4
	`, attempts, lastError, runAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark job for retry: %w", err)
	}
	return checkAffected(result, "notification job")
}

func (r *notificationRepository) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notification_jobs
		SET status = 'failed', attempts = $1, last_error = $2, updated_at = NOW()
		WHERE id = $3
	`, attempts, lastError, id)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return checkAffected(result, "notification job")
}

// Requeue resets a failed job for another delivery round
func (r *notificationRepository) Requeue(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notification_jobs
		SET status = 'pending', attempts = 0, last_error = NULL, run_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'failed'
	`, id)
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}
	return checkAffected(result, "failed notification job")
}

func (r *notificationRepository) ListFailed(ctx context.Context, queue model.QueueName, limit int) ([]*model.NotificationJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM notification_jobs
		WHERE queue = $1 AND status = 'failed'
		ORDER BY updated_at DESC
		LIMIT $2
	`
	var jobs []*model.NotificationJob
	if err := r.db.SelectContext(ctx, &jobs, query, queue, limit); err != nil {
		return nil, fmt.Errorf("failed to list failed jobs: %w", err)
	}
	return jobs, nil
}

func (r *notificationRepository) PendingCount(ctx context.Context, queue model.QueueName) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM notification_jobs
		WHERE queue = $1 AND status = 'pending'
	`, queue)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending jobs: %w", err)
	}
	return count, nil
}

func (r *notificationRepository) InsertLog(ctx context.Context, log *model.MessageLog) error {
	query := `
		INSERT INTO message_logs (id, job_id, client_id, queue, kind, recipient, outcome, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		log.ID, log.JobID, log.ClientID, log.Queue, log.Kind, log.Recipient,
		log.Outcome, log.Error, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message log: %w", err)
	}
	return nil
}

// HasRecentLog reports whether the client already received a message of the
// given kind since the cutoff; the weekly alert driver uses it for dedup
func (r *notificationRepository) HasRecentLog(ctx context.Context, clientID uuid.UUID, kind string, since time.Time) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM message_logs
			WHERE client_id = $1 AND kind = $2 AND outcome = 'SENT' AND created_at >= $3
		)
	`, clientID, kind, since)
	if err != nil {
		return false, fmt.Errorf("failed to check recent message log: %w", err)
	}
	return exists, nil
}

func (r *notificationRepository) DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM message_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete message logs: %w", err)
	}
	return result.RowsAffected()
}

func checkAffected(result interface{ RowsAffected() (int64, error) }, resource string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound(resource, nil)
	}
	return nil
}
