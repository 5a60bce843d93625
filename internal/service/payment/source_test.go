package payment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spasuite/booking-api/pkg/errors"

	"github.com/spasuite/booking-api/internal/model"
)

type fakeLedger struct {
	activeInstance *model.PackageInstance

	debitedInstance    uuid.UUID
	debitedReservation uuid.UUID
	debitedHours       float64

	redeemedVoucher uuid.UUID
	redeemedAmount  float64
}

func (f *fakeLedger) ActiveInstanceForUpdateTx(ctx context.Context, tx *sqlx.Tx, clientID uuid.UUID) (*model.PackageInstance, error) {
	if f.activeInstance == nil {
		return nil, apperrors.NotFound("active package", nil)
	}
	return f.activeInstance, nil
}

func (f *fakeLedger) DebitTx(ctx context.Context, tx *sqlx.Tx, instanceID, reservationID uuid.UUID, hours float64) (*model.LedgerEntry, error) {
	f.debitedInstance = instanceID
	f.debitedReservation = reservationID
	f.debitedHours = hours
	return &model.LedgerEntry{ID: uuid.New()}, nil
}

func (f *fakeLedger) RedeemVoucherTx(ctx context.Context, tx *sqlx.Tx, voucherID, reservationID uuid.UUID, amount float64) (*model.RedemptionRecord, error) {
	f.redeemedVoucher = voucherID
	f.redeemedAmount = amount
	return &model.RedemptionRecord{ID: uuid.New()}, nil
}

func TestSourceForMapsMethods(t *testing.T) {
	r := NewResolver(&fakeLedger{})

	for _, method := range []model.PaymentMethod{
		model.PaymentMethodCash,
		model.PaymentMethodCard,
		model.PaymentMethodPackage,
	} {
		src, err := r.SourceFor(method, nil)
		require.NoError(t, err)
		assert.Equal(t, method, src.Method())
	}

	voucherID := uuid.New()
	src, err := r.SourceFor(model.PaymentMethodVoucher, &voucherID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentMethodVoucher, src.Method())
}

func TestSourceForVoucherRequiresID(t *testing.T) {
	r := NewResolver(&fakeLedger{})

	_, err := r.SourceFor(model.PaymentMethodVoucher, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestSourceForUnsupportedMethod(t *testing.T) {
	r := NewResolver(&fakeLedger{})

	_, err := r.SourceFor(model.PaymentMethod("BARTER"), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestPackageDebitSettle(t *testing.T) {
	instID := uuid.New()
	ledger := &fakeLedger{
		activeInstance: &model.PackageInstance{
			Base:           model.Base{ID: instID},
			RemainingHours: 5,
			Status:         model.PackageStatusActive,
		},
	}
	src, err := NewResolver(ledger).SourceFor(model.PaymentMethodPackage, nil)
	require.NoError(t, err)

	res := &model.Reservation{Base: model.Base{ID: uuid.New()}, ClientID: uuid.New()}
	require.NoError(t, src.Settle(context.Background(), nil, res, 1.5))

	assert.Equal(t, instID, ledger.debitedInstance)
	assert.Equal(t, res.ID, ledger.debitedReservation)
	assert.Equal(t, 1.5, ledger.debitedHours)
}

func TestPackageDebitSettleNoActivePackage(t *testing.T) {
	src, err := NewResolver(&fakeLedger{}).SourceFor(model.PaymentMethodPackage, nil)
	require.NoError(t, err)

	res := &model.Reservation{Base: model.Base{ID: uuid.New()}, ClientID: uuid.New()}
	err = src.Settle(context.Background(), nil, res, 1.5)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestVoucherRedemptionSettleUsesReservationTotal(t *testing.T) {
	ledger := &fakeLedger{}
	voucherID := uuid.New()
	src, err := NewResolver(ledger).SourceFor(model.PaymentMethodVoucher, &voucherID)
	require.NoError(t, err)

	res := &model.Reservation{Base: model.Base{ID: uuid.New()}, TotalPrice: 85}
	require.NoError(t, src.Settle(context.Background(), nil, res, 1))

	assert.Equal(t, voucherID, ledger.redeemedVoucher)
	assert.Equal(t, 85.0, ledger.redeemedAmount)
}

func TestCashAndCardSettleAreNoOps(t *testing.T) {
	res := &model.Reservation{Base: model.Base{ID: uuid.New()}}

	assert.NoError(t, Cash{}.Settle(context.Background(), nil, res, 1))
	assert.NoError(t, Card{}.Settle(context.Background(), nil, res, 1))
}
