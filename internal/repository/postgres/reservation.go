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

type reservationRepository struct {
	BaseRepository
}

func NewReservationRepository(db *sqlx.DB) *reservationRepository {
	return &reservationRepository{BaseRepository: NewBaseRepository(db)}
}

const reservationColumns = `
	id, sequence_number, client_id, therapist_id, room_id, service_id,
	variant_id, date, start_time, end_time, total_price, status,
	payment_status, payment_method, source, notes, created_by,
	created_at, updated_at`

func (r *reservationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	var res model.Reservation
	if err := r.db.GetContext(ctx, &res, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("reservation", err)
		}
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return &res, nil
}

func (r *reservationRepository) List(ctx context.Context, filters *model.ReservationFilters) ([]*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.TherapistID != nil {
			query += fmt.Sprintf(" AND therapist_id = $%d", argCount)
			args = append(args, *filters.TherapistID)
			argCount++
		}
		if filters.ClientID != nil {
			query += fmt.Sprintf(" AND client_id = $%d", argCount)
			args = append(args, *filters.ClientID)
			argCount++
		}
		if filters.RoomID != nil {
			query += fmt.Sprintf(" AND room_id = $%d", argCount)
			args = append(args, *filters.RoomID)
			argCount++
		}
		if filters.Status != nil {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, *filters.Status)
			argCount++
		}
		if filters.DateFrom != nil {
			query += fmt.Sprintf(" AND date >= $%d", argCount)
			args = append(args, *filters.DateFrom)
			argCount++
		}
		if filters.DateTo != nil {
			query += fmt.Sprintf(" AND date <= $%d", argCount)
			args = append(args, *filters.DateTo)
			argCount++
		}
	}

	query += " ORDER BY start_time ASC"

	var reservations []*model.Reservation
	if err := r.db.SelectContext(ctx, &reservations, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, nil
}

// ListBlockingForDate returns every reservation on the date that still
// occupies its therapist and room
func (r *reservationRepository) ListBlockingForDate(ctx context.Context, date time.Time) ([]*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE date = $1 AND status NOT IN ('CANCELLED', 'NO_SHOW')
		ORDER BY start_time ASC`
	var reservations []*model.Reservation
	if err := r.db.SelectContext(ctx, &reservations, query, date); err != nil {
		return nil, fmt.Errorf("failed to list blocking reservations: %w", err)
	}
	return reservations, nil
}

func (r *reservationRepository) ListByStatusForDate(ctx context.Context, status model.ReservationStatus, date time.Time) ([]*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE date = $1 AND status = $2
		ORDER BY start_time ASC`
	var reservations []*model.Reservation
	if err := r.db.SelectContext(ctx, &reservations, query, date, status); err != nil {
		return nil, fmt.Errorf("failed to list reservations by status: %w", err)
	}
	return reservations, nil
}

func (r *reservationRepository) GetAddOns(ctx context.Context, reservationID uuid.UUID) ([]*model.ReservationAddOn, error) {
	query := `
		SELECT reservation_id, add_on_id, price
		FROM reservation_add_ons
		WHERE reservation_id = $1
	`
	var addOns []*model.ReservationAddOn
	if err := r.db.SelectContext(ctx, &addOns, query, reservationID); err != nil {
		return nil, fmt.Errorf("failed to get reservation add-ons: %w", err)
	}
	return addOns, nil
}

func (r *reservationRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("reservation", nil)
	}
	return nil
}

// NextSequenceTx allocates the next year-scoped sequence number. An
// advisory xact lock keyed by year serializes concurrent allocations;
// the lock is released when the surrounding transaction ends.
func (r *reservationRepository) NextSequenceTx(ctx context.Context, tx *sqlx.Tx, year int) (string, error) {
	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext('reservation_sequence'), $1)`, year); err != nil {
		return "", fmt.Errorf("failed to lock sequence for year %d: %w", year, err)
	}

	var maxSuffix sql.NullInt64
	query := `
		SELECT MAX(CAST(SUBSTRING(sequence_number FROM 10) AS INTEGER))
		FROM reservations
		WHERE sequence_number LIKE $1
	`
	if err := tx.GetContext(ctx, &maxSuffix, query, fmt.Sprintf("RES-%d-%%", year)); err != nil {
		return "", fmt.Errorf("failed to read max sequence number: %w", err)
	}

	next := int64(1)
	if maxSuffix.Valid {
		next = maxSuffix.Int64 + 1
	}
	return fmt.Sprintf("RES-%d-%05d", year, next), nil
}

// LockResourcesTx serializes concurrent bookings that touch the same
// therapist or room, so the overlap re-check cannot race a concurrent insert
func (r *reservationRepository) LockResourcesTx(ctx context.Context, tx *sqlx.Tx, therapistID, roomID uuid.UUID) error {
	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1)), pg_advisory_xact_lock(hashtext($2))`,
		therapistID.String(), roomID.String()); err != nil {
		return fmt.Errorf("failed to lock resources: %w", err)
	}
	return nil
}

func (r *reservationRepository) HasOverlapTx(ctx context.Context, tx *sqlx.Tx, therapistID, roomID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM reservations
			WHERE (therapist_id = $1 OR room_id = $2)
			AND status NOT IN ('CANCELLED', 'NO_SHOW')
			AND NOT (end_time <= $3 OR start_time >= $4)
	`
	args := []interface{}{therapistID, roomID, start, end}

	if excludeID != nil {
		query += " AND id != $5"
		args = append(args, *excludeID)
	}
	query += ")"

	var hasOverlap bool
	if err := tx.GetContext(ctx, &hasOverlap, query, args...); err != nil {
		return false, fmt.Errorf("failed to check overlap: %w", err)
	}
	return hasOverlap, nil
}

func (r *reservationRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, res *model.Reservation) error {
	query := `
		INSERT INTO reservations (` + reservationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				$15, $16, $17, $18, $19)
	`
	_, err := tx.ExecContext(ctx, query,
		res.ID, res.SequenceNumber, res.ClientID, res.TherapistID, res.RoomID,
		res.ServiceID, res.VariantID, res.Date, res.StartTime, res.EndTime,
		res.TotalPrice, res.Status, res.PaymentStatus, res.PaymentMethod,
		res.Source, res.Notes, res.CreatedBy, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (r *reservationRepository) AddAddOnsTx(ctx context.Context, tx *sqlx.Tx, addOns []model.ReservationAddOn) error {
	query := `
		INSERT INTO reservation_add_ons (reservation_id, add_on_id, price)
		VALUES ($1, $2, $3)
	`
	for _, a := range addOns {
		if _, err := tx.ExecContext(ctx, query, a.ReservationID, a.AddOnID, a.Price); err != nil {
			return fmt.Errorf("failed to attach add-on: %w", err)
		}
	}
	return nil
}

func (r *reservationRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, res *model.Reservation) error {
	query := `
		UPDATE reservations
		SET therapist_id = $1, room_id = $2, date = $3, start_time = $4,
			end_time = $5, notes = $6, updated_at = $7
		WHERE id = $8
	`
	res.UpdatedAt = time.Now()

	result, err := tx.ExecContext(ctx, query,
		res.TherapistID, res.RoomID, res.Date, res.StartTime, res.EndTime,
		res.Notes, res.UpdatedAt, res.ID)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("reservation", nil)
	}
	return nil
}

// UpdateStatusTx applies one lifecycle transition. The expected current
// status is part of the predicate, so two concurrent transitions from the
// same state cannot both win.
func (r *reservationRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to model.ReservationStatus) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		to, time.Now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.Conflictf("reservation is no longer %s", from)
	}
	return nil
}

func (r *reservationRepository) UpdatePaymentStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.PaymentStatus) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE reservations SET payment_status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("reservation", nil)
	}
	return nil
}
