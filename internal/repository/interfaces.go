package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/spasuite/booking-api/internal/model"
)

// TxManager runs a function inside a database transaction
type TxManager interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
}

// All repository interfaces in one file
type (
	// CatalogRepository serves the static rows the core validates against
	CatalogRepository interface {
		GetClient(ctx context.Context, id uuid.UUID) (*model.Client, error)
		GetTherapist(ctx context.Context, id uuid.UUID) (*model.Therapist, error)
		ListActiveTherapists(ctx context.Context) ([]*model.Therapist, error)
		CreateTherapist(ctx context.Context, t *model.Therapist) error
		GetRoom(ctx context.Context, id uuid.UUID) (*model.Room, error)
		ListActiveRooms(ctx context.Context) ([]*model.Room, error)
		CreateRoom(ctx context.Context, r *model.Room) error
		GetService(ctx context.Context, id uuid.UUID) (*model.Service, error)
		ListServices(ctx context.Context) ([]*model.Service, error)
		GetVariant(ctx context.Context, id uuid.UUID) (*model.ServiceVariant, error)
		ListVariants(ctx context.Context, serviceID uuid.UUID) ([]*model.ServiceVariant, error)
		GetAddOns(ctx context.Context, ids []uuid.UUID) ([]*model.AddOn, error)
		GetPackageDefinition(ctx context.Context, id uuid.UUID) (*model.PackageDefinition, error)
	}

	CalendarRepository interface {
		Upsert(ctx context.Context, entry *model.CalendarEntry) error
		GetForDate(ctx context.Context, therapistID uuid.UUID, date time.Time) (*model.CalendarEntry, error)
		ListForDate(ctx context.Context, date time.Time) ([]*model.CalendarEntry, error)
		ListRange(ctx context.Context, therapistID uuid.UUID, from, to time.Time) ([]*model.CalendarEntry, error)
	}

	ReservationRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
		List(ctx context.Context, filters *model.ReservationFilters) ([]*model.Reservation, error)
		ListBlockingForDate(ctx context.Context, date time.Time) ([]*model.Reservation, error)
		ListByStatusForDate(ctx context.Context, status model.ReservationStatus, date time.Time) ([]*model.Reservation, error)
		GetAddOns(ctx context.Context, reservationID uuid.UUID) ([]*model.ReservationAddOn, error)
		HardDelete(ctx context.Context, id uuid.UUID) error

		// Tx-scoped operations composed by the service layer
		NextSequenceTx(ctx context.Context, tx *sqlx.Tx, year int) (string, error)
		HasOverlapTx(ctx context.Context, tx *sqlx.Tx, therapistID, roomID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)
		LockResourcesTx(ctx context.Context, tx *sqlx.Tx, therapistID, roomID uuid.UUID) error
		CreateTx(ctx context.Context, tx *sqlx.Tx, r *model.Reservation) error
		AddAddOnsTx(ctx context.Context, tx *sqlx.Tx, addOns []model.ReservationAddOn) error
		UpdateTx(ctx context.Context, tx *sqlx.Tx, r *model.Reservation) error
		UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to model.ReservationStatus) error
		UpdatePaymentStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.PaymentStatus) error
	}

	// PackageRepository persists package instances and their append-only ledger
	PackageRepository interface {
		GetInstance(ctx context.Context, id uuid.UUID) (*model.PackageInstance, error)
		GetActiveForClient(ctx context.Context, clientID uuid.UUID) (*model.PackageInstance, error)
		ListEntries(ctx context.Context, instanceID uuid.UUID) ([]*model.LedgerEntry, error)
		SweepExpired(ctx context.Context, now time.Time) (int64, error)
		ListNearDepletion(ctx context.Context, hoursThreshold float64) ([]*model.PackageInstance, error)
		ListNearExpiry(ctx context.Context, now time.Time, within time.Duration) ([]*model.PackageInstance, error)

		GetInstanceForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.PackageInstance, error)
		GetActiveForClientForUpdateTx(ctx context.Context, tx *sqlx.Tx, clientID uuid.UUID) (*model.PackageInstance, error)
		CreateInstanceTx(ctx context.Context, tx *sqlx.Tx, inst *model.PackageInstance) error
		InsertEntryTx(ctx context.Context, tx *sqlx.Tx, entry *model.LedgerEntry) error
		UpdateBalanceTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, usedHours, remainingHours float64, status model.PackageStatus) error
		NetDebitTx(ctx context.Context, tx *sqlx.Tx, instanceID, reservationID uuid.UUID) (float64, error)
		InstanceForReservationTx(ctx context.Context, tx *sqlx.Tx, reservationID uuid.UUID) (uuid.UUID, error)
		CreatePaymentTx(ctx context.Context, tx *sqlx.Tx, p *model.PaymentTransaction) error
	}

	VoucherRepository interface {
		Create(ctx context.Context, v *model.Voucher) error
		Get(ctx context.Context, id uuid.UUID) (*model.Voucher, error)
		GetByCode(ctx context.Context, code string) (*model.Voucher, error)
		ListRedemptions(ctx context.Context, voucherID uuid.UUID) ([]*model.RedemptionRecord, error)
		SweepExpired(ctx context.Context, now time.Time) (int64, error)

		GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Voucher, error)
		InsertRedemptionTx(ctx context.Context, tx *sqlx.Tx, rec *model.RedemptionRecord) error
		UpdateBalanceTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, remaining float64, status model.VoucherStatus) error
		ExtendTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, expiry time.Time, remaining float64) error
	}

	// NotificationRepository owns the job queue and the message audit log
	NotificationRepository interface {
		Enqueue(ctx context.Context, job *model.NotificationJob) error
		EnqueueTx(ctx context.Context, tx *sqlx.Tx, job *model.NotificationJob) error
		ClaimPending(ctx context.Context, queue model.QueueName, limit int) ([]*model.NotificationJob, error)
		MarkSent(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, attempts int, lastError string, runAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error
		Requeue(ctx context.Context, id uuid.UUID) error
		ListFailed(ctx context.Context, queue model.QueueName, limit int) ([]*model.NotificationJob, error)
		PendingCount(ctx context.Context, queue model.QueueName) (int64, error)

		InsertLog(ctx context.Context, log *model.MessageLog) error
		HasRecentLog(ctx context.Context, clientID uuid.UUID, kind string, since time.Time) (bool, error)
		DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}
)
