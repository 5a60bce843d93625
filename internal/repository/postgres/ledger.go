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

type packageRepository struct {
	BaseRepository
}

func NewPackageRepository(db *sqlx.DB) *packageRepository {
	return &packageRepository{BaseRepository: NewBaseRepository(db)}
}

const instanceColumns = `
	id, client_id, definition_id, purchased_hours, used_hours,
	remaining_hours, expiry_date, status, created_at, updated_at`

func (r *packageRepository) GetInstance(ctx context.Context, id uuid.UUID) (*model.PackageInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM package_instances WHERE id = $1`
	var inst model.PackageInstance
	if err := r.db.GetContext(ctx, &inst, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("package instance", err)
		}
		return nil, fmt.Errorf("failed to get package instance: %w", err)
	}
	return &inst, nil
}

func (r *packageRepository) GetActiveForClient(ctx context.Context, clientID uuid.UUID) (*model.PackageInstance, error) {
	query := `SELECT ` + instanceColumns + `
		FROM package_instances
		WHERE client_id = $1 AND status = 'ACTIVE'`
	var inst model.PackageInstance
	if err := r.db.GetContext(ctx, &inst, query, clientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("active package instance", err)
		}
		return nil, fmt.Errorf("failed to get active package instance: %w", err)
	}
	return &inst, nil
}

func (r *packageRepository) ListEntries(ctx context.Context, instanceID uuid.UUID) ([]*model.LedgerEntry, error) {
	query := `
		SELECT id, instance_id, reservation_id, kind, hours, balance_after, created_at
		FROM ledger_entries
		WHERE instance_id = $1
		ORDER BY created_at ASC
	`
	var entries []*model.LedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, instanceID); err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

// SweepExpired transitions expired ACTIVE instances in one statement.
// The status guard makes concurrent sweeps and debits safe: a row already
// debited to zero and flipped to USED is not touched.
func (r *packageRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE package_instances
		SET status = 'EXPIRED', updated_at = $1
		WHERE status = 'ACTIVE' AND expiry_date < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired packages: %w", err)
	}
	return result.RowsAffected()
}

func (r *packageRepository) ListNearDepletion(ctx context.Context, hoursThreshold float64) ([]*model.PackageInstance, error) {
	query := `SELECT ` + instanceColumns + `
		FROM package_instances
		WHERE status = 'ACTIVE' AND remaining_hours <= $1 AND remaining_hours > 0`
	var instances []*model.PackageInstance
	if err := r.db.SelectContext(ctx, &instances, query, hoursThreshold); err != nil {
		return nil, fmt.Errorf("failed to list near-depletion instances: %w", err)
	}
	return instances, nil
}

func (r *packageRepository) ListNearExpiry(ctx context.Context, now time.Time, within time.Duration) ([]*model.PackageInstance, error) {
	query := `SELECT ` + instanceColumns + `
		FROM package_instances
		WHERE status = 'ACTIVE' AND expiry_date > $1 AND expiry_date <= $2`
	var instances []*model.PackageInstance
	if err := r.db.SelectContext(ctx, &instances, query, now, now.Add(within)); err != nil {
		return nil, fmt.Errorf("failed to list near-expiry instances: %w", err)
	}
	return instances, nil
}

// GetInstanceForUpdateTx locks the projection row for the duration of the
// read-modify-write, preventing lost updates between concurrent debits
func (r *packageRepository) GetInstanceForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.PackageInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM package_instances WHERE id = $1 FOR UPDATE`
	var inst model.PackageInstance
	if err := tx.GetContext(ctx, &inst, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("package instance", err)
		}
		return nil, fmt.Errorf("failed to lock package instance: %w", err)
	}
	return &inst, nil
}

func (r *packageRepository) GetActiveForClientForUpdateTx(ctx context.Context, tx *sqlx.Tx, clientID uuid.UUID) (*model.PackageInstance, error) {
	query := `SELECT ` + instanceColumns + `
		FROM package_instances
		WHERE client_id = $1 AND status = 'ACTIVE'
		FOR UPDATE`
	var inst model.PackageInstance
	if err := tx.GetContext(ctx, &inst, query, clientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("active package instance", err)
		}
		return nil, fmt.Errorf("failed to lock package instance: %w", err)
	}
	return &inst, nil
}

func (r *packageRepository) CreateInstanceTx(ctx context.Context, tx *sqlx.Tx, inst *model.PackageInstance) error {
	query := `
		INSERT INTO package_instances (` + instanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := tx.ExecContext(ctx, query,
		inst.ID, inst.ClientID, inst.DefinitionID, inst.PurchasedHours,
		inst.UsedHours, inst.RemainingHours, inst.ExpiryDate, inst.Status,
		inst.CreatedAt, inst.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create package instance: %w", err)
	}
	return nil
}

func (r *packageRepository) InsertEntryTx(ctx context.Context, tx *sqlx.Tx, entry *model.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (id, instance_id, reservation_id, kind, hours, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.ExecContext(ctx, query,
		entry.ID, entry.InstanceID, entry.ReservationID, entry.Kind,
		entry.Hours, entry.BalanceAfter, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

func (r *packageRepository) UpdateBalanceTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, usedHours, remainingHours float64, status model.PackageStatus) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE package_instances
		SET used_hours = $1, remaining_hours = $2, status = $3, updated_at = $4
		WHERE id = $5
	`, usedHours, remainingHours, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update package balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("package instance", nil)
	}
	return nil
}

// NetDebitTx returns the hours still debited for the reservation on this
// instance: debits minus compensating credits
func (r *packageRepository) NetDebitTx(ctx context.Context, tx *sqlx.Tx, instanceID, reservationID uuid.UUID) (float64, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN kind = 'DEBIT' THEN hours ELSE -hours END), 0)
		FROM ledger_entries
		WHERE instance_id = $1 AND reservation_id = $2
	`
	var net float64
	if err := tx.GetContext(ctx, &net, query, instanceID, reservationID); err != nil {
		return 0, fmt.Errorf("failed to compute net debit: %w", err)
	}
	return net, nil
}

// InstanceForReservationTx finds the instance a reservation's hours were
// debited from, via its ledger rows
func (r *packageRepository) InstanceForReservationTx(ctx context.Context, tx *sqlx.Tx, reservationID uuid.UUID) (uuid.UUID, error) {
	var instanceID uuid.UUID
	err := tx.GetContext(ctx, &instanceID, `
		SELECT instance_id FROM ledger_entries
		WHERE reservation_id = $1 AND kind = 'DEBIT'
		ORDER BY created_at DESC
		LIMIT 1
	`, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, apperrors.NotFound("ledger entry", err)
		}
		return uuid.Nil, fmt.Errorf("failed to find instance for reservation: %w", err)
	}
	return instanceID, nil
}

func (r *packageRepository) CreatePaymentTx(ctx context.Context, tx *sqlx.Tx, p *model.PaymentTransaction) error {
	query := `
		INSERT INTO payment_transactions (id, client_id, instance_id, amount, payment_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.ExecContext(ctx, query,
		p.ID, p.ClientID, p.InstanceID, p.Amount, p.PaymentMethod, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment transaction: %w", err)
	}
	return nil
}

type voucherRepository struct {
	BaseRepository
}

func NewVoucherRepository(db *sqlx.DB) *voucherRepository {
	return &voucherRepository{BaseRepository: NewBaseRepository(db)}
}

const voucherColumns = `
	id, code, kind, initial_value, remaining_value, expiry_date, status,
	purchaser_id, created_at, updated_at`

func (r *voucherRepository) Create(ctx context.Context, v *model.Voucher) error {
	query := `
		INSERT INTO vouchers (` + voucherColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		v.ID, v.Code, v.Kind, v.InitialValue, v.RemainingValue, v.ExpiryDate,
		v.Status, v.PurchaserID, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create voucher: %w", err)
	}
	return nil
}

func (r *voucherRepository) Get(ctx context.Context, id uuid.UUID) (*model.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE id = $1`
	var v model.Voucher
	if err := r.db.GetContext(ctx, &v, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("voucher", err)
		}
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	return &v, nil
}

func (r *voucherRepository) GetByCode(ctx context.Context, code string) (*model.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE code = $1`
	var v model.Voucher
	if err := r.db.GetContext(ctx, &v, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("voucher", err)
		}
		return nil, fmt.Errorf("failed to get voucher by code: %w", err)
	}
	return &v, nil
}

func (r *voucherRepository) ListRedemptions(ctx context.Context, voucherID uuid.UUID) ([]*model.RedemptionRecord, error) {
	query := `
		SELECT id, voucher_id, reservation_id, amount, balance_after, created_at
		FROM redemption_records
		WHERE voucher_id = $1
		ORDER BY created_at ASC
	`
	var records []*model.RedemptionRecord
	if err := r.db.SelectContext(ctx, &records, query, voucherID); err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}
	return records, nil
}

func (r *voucherRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE vouchers
		SET status = 'EXPIRED', updated_at = $1
		WHERE status = 'ACTIVE' AND expiry_date < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired vouchers: %w", err)
	}
	return result.RowsAffected()
}

func (r *voucherRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE id = $1 FOR UPDATE`
	var v model.Voucher
	if err := tx.GetContext(ctx, &v, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("voucher", err)
		}
		return nil, fmt.Errorf("failed to lock voucher: %w", err)
	}
	return &v, nil
}

func (r *voucherRepository) InsertRedemptionTx(ctx context.Context, tx *sqlx.Tx, rec *model.RedemptionRecord) error {
	query := `
		INSERT INTO redemption_records (id, voucher_id, reservation_id, amount, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.ExecContext(ctx, query,
		rec.ID, rec.VoucherID, rec.ReservationID, rec.Amount, rec.BalanceAfter, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert redemption record: %w", err)
	}
	return nil
}

func (r *voucherRepository) UpdateBalanceTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, remaining float64, status model.VoucherStatus) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE vouchers
		SET remaining_value = $1, status = $2, updated_at = $3
		WHERE id = $4
	`, remaining, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update voucher balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("voucher", nil)
	}
	return nil
}

func (r *voucherRepository) ExtendTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, expiry time.Time, remaining float64) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE vouchers
		SET expiry_date = $1, remaining_value = $2, status = 'ACTIVE', updated_at = $3
		WHERE id = $4
	`, expiry, remaining, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to extend voucher: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("voucher", nil)
	}
	return nil
}
