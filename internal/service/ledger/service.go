package ledger

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/spasuite/booking-api/pkg/errors"
	"github.com/spasuite/booking-api/pkg/logger"

	"github.com/spasuite/booking-api/internal/model"
	"github.com/spasuite/booking-api/internal/repository"
)

type Service struct {
	packageRepo repository.PackageRepository
	voucherRepo repository.VoucherRepository
	catalogRepo repository.CatalogRepository
	txm         repository.TxManager
	logger      *logger.Logger
}

func NewService(packageRepo repository.PackageRepository, voucherRepo repository.VoucherRepository, catalogRepo repository.CatalogRepository, txm repository.TxManager, logger *logger.Logger) *Service {
	return &Service{
		packageRepo: packageRepo,
		voucherRepo: voucherRepo,
		catalogRepo: catalogRepo,
		txm:         txm,
		logger:      logger,
	}
}

// Sell creates a package instance for the client. A client can hold at most
// one ACTIVE instance; the instance and its payment record are inserted in
// one transaction.
func (s *Service) Sell(ctx context.Context, req *model.SellPackageRequest) (*model.PackageInstance, error) {
	client, err := s.catalogRepo.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	if !client.Active {
		return nil, apperrors.Validation("client is not active", nil)
	}

	def, err := s.catalogRepo.GetPackageDefinition(ctx, req.DefinitionID)
	if err != nil {
		return nil, err
	}
	if !def.Active {
		return nil, apperrors.Validation("package definition is not active", nil)
	}

	now := time.Now()
	inst := &model.PackageInstance{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		ClientID:       req.ClientID,
		DefinitionID:   def.ID,
		PurchasedHours: def.Hours,
		UsedHours:      0,
		RemainingHours: def.Hours,
		ExpiryDate:     now.AddDate(0, 0, def.ValidityDays),
		Status:         model.PackageStatusActive,
	}

	err = s.txm.WithTx(ctx, func(tx *sqlx.Tx) error {
		existing, err := s.packageRepo.GetActiveForClientForUpdateTx(ctx, tx, req.ClientID)
		if err != nil && !apperrors.IsNotFound(err) {
			return err
		}
		if existing != nil {
			return apperrors.Conflictf("client already holds an active package")
		}

		if err := s.packageRepo.CreateInstanceTx(ctx, tx, inst); err != nil {
			return err
		}

		instID := inst.ID
		return s.packageRepo.CreatePaymentTx(ctx, tx, &model.PaymentTransaction{
			ID:            uuid.New(),
			ClientID:      req.ClientID,
			InstanceID:    &instID,
			Amount:        def.Price,
			PaymentMethod: req.PaymentMethod,
			CreatedAt:     now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("package sold", "instance_id", inst.ID.String(), "client_id", req.ClientID.String())
	return inst, nil
}

// Debit draws hours for a reservation in its own transaction
func (s *Service) Debit(ctx context.Context, instanceID, reservationID uuid.UUID, hours float64) (*model.LedgerEntry, error) {
	var entry *model.LedgerEntry
	err := s.txm.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		entry, err = s.DebitTx(ctx, tx, instanceID, reservationID, hours)
		return err
	})
	return entry, err
}

// DebitTx draws hours inside a caller-owned transaction; the reservation
// service uses this to make booking and debit one atomic unit. The instance
// row stays locked until the transaction ends.
func (s *Service) DebitTx(ctx context.Context, tx *sqlx.Tx, instanceID, reservationID uuid.UUID, hours float64) (*model.LedgerEntry, error) {
	if hours <= 0 {
		return nil, apperrors.Validation("debit hours must be positive", nil)
	}

	inst, err := s.packageRepo.GetInstanceForUpdateTx(ctx, tx, instanceID)
	if err != nil {
		return nil, err
	}
	if inst.Status != model.PackageStatusActive {
		return nil, apperrors.Conflictf("package is %s", inst.Status)
	}
	if hours > inst.RemainingHours {
		return nil, apperrors.Conflictf("insufficient balance: %.2f hours remaining, %.2f requested", inst.RemainingHours, hours)
	}

	remaining := inst.RemainingHours - hours
	entry := &model.LedgerEntry{
		ID:            uuid.New(),
		InstanceID:    instanceID,
		ReservationID: reservationID,
		Kind:          model.LedgerEntryDebit,
		Hours:         hours,
		BalanceAfter:  remaining,
		CreatedAt:     time.Now(),
	}
	if err := s.packageRepo.InsertEntryTx(ctx, tx, entry); err != nil {
		return nil, err
	}

	status := inst.Status
	if remaining == 0 {
		status = model.PackageStatusUsed
	}
	if err := s.packageRepo.UpdateBalanceTx(ctx, tx, instanceID, inst.UsedHours+hours, remaining, status); err != nil {
		return nil, err
	}
	return entry, nil
}

// Refund reverses a reservation's debit with a compensating credit row.
// The original debit rows are never deleted.
func (s *Service) Refund(ctx context.Context, instanceID, reservationID uuid.UUID) (*model.LedgerEntry, error) {
	var entry *model.LedgerEntry
	err := s.txm.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		entry, err = s.RefundTx(ctx, tx, instanceID, reservationID)
		return err
	})
	return entry, err
}

func (s *Service) RefundTx(ctx context.Context, tx *sqlx.Tx, instanceID, reservationID uuid.UUID) (*model.LedgerEntry, error) {
	inst, err := s.packageRepo.GetInstanceForUpdateTx(ctx, tx, instanceID)
	if err != nil {
		return nil, err
	}

	net, err := s.packageRepo.NetDebitTx(ctx, tx, instanceID, reservationID)
	if err != nil {
		return nil, err
	}
	if net <= 0 {
		return nil, apperrors.Conflictf("nothing to refund for this reservation")
	}

	remaining := inst.RemainingHours + net
	entry := &model.LedgerEntry{
		ID:            uuid.New(),
		InstanceID:    instanceID,
		ReservationID: reservationID,
		Kind:          model.LedgerEntryCredit,
		Hours:         net,
		BalanceAfter:  remaining,
		CreatedAt:     time.Now(),
	}
	if err := s.packageRepo.InsertEntryTx(ctx, tx, entry); err != nil {
		return nil, err
	}

	// A USED instance regains ACTIVE status with its balance, unless its
	// validity window has already passed
	status := inst.Status
	if status == model.PackageStatusUsed {
		if inst.ExpiryDate.After(time.Now()) {
			status = model.PackageStatusActive
		} else {
			status = model.PackageStatusExpired
		}
	}
	if err := s.packageRepo.UpdateBalanceTx(ctx, tx, instanceID, inst.UsedHours-net, remaining, status); err != nil {
		return nil, err
	}
	return entry, nil
}

// CreateVoucher issues a new voucher with an unguessable code
func (s *Service) CreateVoucher(ctx context.Context, req *model.CreateVoucherRequest) (*model.Voucher, error) {
	code, err := generateVoucherCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate voucher code: %w", err)
	}

	now := time.Now()
	voucher := &model.Voucher{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Code:           code,
		Kind:           req.Kind,
		InitialValue:   req.InitialValue,
		RemainingValue: req.InitialValue,
		ExpiryDate:     now.AddDate(0, 0, req.ValidityDays),
		Status:         model.VoucherStatusActive,
		PurchaserID:    req.PurchaserID,
	}
	if err := s.voucherRepo.Create(ctx, voucher); err != nil {
		return nil, err
	}
	return voucher, nil
}

func (s *Service) RedeemVoucher(ctx context.Context, voucherID, reservationID uuid.UUID, amount float64) (*model.RedemptionRecord, error) {
	var rec *model.RedemptionRecord
	err := s.txm.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		rec, err = s.RedeemVoucherTx(ctx, tx, voucherID, reservationID, amount)
		return err
	})
	return rec, err
}

func (s *Service) RedeemVoucherTx(ctx context.Context, tx *sqlx.Tx, voucherID, reservationID uuid.UUID, amount float64) (*model.RedemptionRecord, error) {
	if amount <= 0 {
		return nil, apperrors.Validation("redemption amount must be positive", nil)
	}

	voucher, err := s.voucherRepo.GetForUpdateTx(ctx, tx, voucherID)
	if err != nil {
		return nil, err
	}
	if voucher.Status != model.VoucherStatusActive {
		return nil, apperrors.Conflictf("voucher is %s", voucher.Status)
	}
	if voucher.ExpiryDate.Before(time.Now()) {
		return nil, apperrors.Conflictf("voucher has expired")
	}
	if amount > voucher.RemainingValue {
		return nil, apperrors.Conflictf("insufficient voucher balance: %.2f remaining, %.2f requested", voucher.RemainingValue, amount)
	}

	remaining := voucher.RemainingValue - amount
	rec := &model.RedemptionRecord{
		ID:            uuid.New(),
		VoucherID:     voucherID,
		ReservationID: reservationID,
		Amount:        amount,
		BalanceAfter:  remaining,
		CreatedAt:     time.Now(),
	}
	if err := s.voucherRepo.InsertRedemptionTx(ctx, tx, rec); err != nil {
		return nil, err
	}

	status := voucher.Status
	if remaining == 0 {
		status = model.VoucherStatusUsed
	}
	if err := s.voucherRepo.UpdateBalanceTx(ctx, tx, voucherID, remaining, status); err != nil {
		return nil, err
	}
	return rec, nil
}

// ExtendVoucher is the only path that can raise a voucher's value or push
// its expiry out
func (s *Service) ExtendVoucher(ctx context.Context, voucherID uuid.UUID, req *model.ExtendVoucherRequest) (*model.Voucher, error) {
	if req.ExtraDays == 0 && req.ExtraValue == 0 {
		return nil, apperrors.Validation("nothing to extend", nil)
	}

	var voucher *model.Voucher
	err := s.txm.WithTx(ctx, func(tx *sqlx.Tx) error {
		v, err := s.voucherRepo.GetForUpdateTx(ctx, tx, voucherID)
		if err != nil {
			return err
		}

		expiry := v.ExpiryDate.AddDate(0, 0, req.ExtraDays)
		remaining := v.RemainingValue + req.ExtraValue
		if err := s.voucherRepo.ExtendTx(ctx, tx, voucherID, expiry, remaining); err != nil {
			return err
		}

		v.ExpiryDate = expiry
		v.RemainingValue = remaining
		v.Status = model.VoucherStatusActive
		voucher = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return voucher, nil
}

// SweepExpired bulk-transitions expired packages and vouchers. Run at least
// once daily; safe to run concurrently with sells and debits.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	now := time.Now()

	packages, err := s.packageRepo.SweepExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep packages: %w", err)
	}

	vouchers, err := s.voucherRepo.SweepExpired(ctx, now)
	if err != nil {
		return packages, fmt.Errorf("failed to sweep vouchers: %w", err)
	}

	total := packages + vouchers
	if total > 0 {
		s.logger.Info("expiry sweep complete", "packages", packages, "vouchers", vouchers)
	}
	return total, nil
}

// ActiveInstanceForUpdateTx locks and returns the client's ACTIVE instance
// inside a caller-owned transaction
func (s *Service) ActiveInstanceForUpdateTx(ctx context.Context, tx *sqlx.Tx, clientID uuid.UUID) (*model.PackageInstance, error) {
	return s.packageRepo.GetActiveForClientForUpdateTx(ctx, tx, clientID)
}

// InstanceForReservationTx resolves which instance a reservation debited
func (s *Service) InstanceForReservationTx(ctx context.Context, tx *sqlx.Tx, reservationID uuid.UUID) (uuid.UUID, error) {
	return s.packageRepo.InstanceForReservationTx(ctx, tx, reservationID)
}

func (s *Service) GetInstance(ctx context.Context, id uuid.UUID) (*model.PackageInstance, error) {
	return s.packageRepo.GetInstance(ctx, id)
}

func (s *Service) GetActiveInstance(ctx context.Context, clientID uuid.UUID) (*model.PackageInstance, error) {
	return s.packageRepo.GetActiveForClient(ctx, clientID)
}

func (s *Service) ListEntries(ctx context.Context, instanceID uuid.UUID) ([]*model.LedgerEntry, error) {
	return s.packageRepo.ListEntries(ctx, instanceID)
}

func (s *Service) GetVoucher(ctx context.Context, id uuid.UUID) (*model.Voucher, error) {
	return s.voucherRepo.Get(ctx, id)
}

func (s *Service) ListRedemptions(ctx context.Context, voucherID uuid.UUID) ([]*model.RedemptionRecord, error) {
	return s.voucherRepo.ListRedemptions(ctx, voucherID)
}

func generateVoucherCode() (string, error) {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
	return "GV-" + code, nil
}
