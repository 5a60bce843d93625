package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/spasuite/booking-api/pkg/errors"

	"github.com/spasuite/booking-api/internal/model"
)

type calendarRepository struct {
	BaseRepository
}

func NewCalendarRepository(db *sqlx.DB) *calendarRepository {
	return &calendarRepository{BaseRepository: NewBaseRepository(db)}
}

// Upsert creates or replaces the therapist's entry for the date.
// The unique (therapist_id, date) constraint keeps one entry per day.
func (r *calendarRepository) Upsert(ctx context.Context, entry *model.CalendarEntry) error {
	query := `
		INSERT INTO calendar_entries (
			id, therapist_id, date, work_start, work_end, work_status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (therapist_id, date) DO UPDATE SET
			work_start = EXCLUDED.work_start,
			work_end = EXCLUDED.work_end,
			work_status = EXCLUDED.work_status,
			updated_at = EXCLUDED.updated_at
	`
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.TherapistID, entry.Date, entry.WorkStart, entry.WorkEnd,
		entry.WorkStatus, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert calendar entry: %w", err)
	}
	return nil
}

func (r *calendarRepository) GetForDate(ctx context.Context, therapistID uuid.UUID, date time.Time) (*model.CalendarEntry, error) {
	query := `
		SELECT id, therapist_id, date, work_start, work_end, work_status,
			   created_at, updated_at
		FROM calendar_entries
		WHERE therapist_id = $1 AND date = $2
	`
	var entry model.CalendarEntry
	if err := r.db.GetContext(ctx, &entry, query, therapistID, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("calendar entry", err)
		}
		return nil, fmt.Errorf("failed to get calendar entry: %w", err)
	}
	return &entry, nil
}

func (r *calendarRepository) ListForDate(ctx context.Context, date time.Time) ([]*model.CalendarEntry, error) {
	query := `
		SELECT id, therapist_id, date, work_start, work_end, work_status,
			   created_at, updated_at
		FROM calendar_entries
		WHERE date = $1
	`
	var entries []*model.CalendarEntry
	if err := r.db.SelectContext(ctx, &entries, query, date); err != nil {
		return nil, fmt.Errorf("failed to list calendar entries: %w", err)
	}
	return entries, nil
}

func (r *calendarRepository) ListRange(ctx context.Context, therapistID uuid.UUID, from, to time.Time) ([]*model.CalendarEntry, error) {
	query := `
		SELECT id, therapist_id, date, work_start, work_end, work_status,
			   created_at, updated_at
		FROM calendar_entries
		WHERE therapist_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date
	`
	var entries []*model.CalendarEntry
	if err := r.db.SelectContext(ctx, &entries, query, therapistID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list calendar entries: %w", err)
	}
	return entries, nil
}
