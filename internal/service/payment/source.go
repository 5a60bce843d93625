package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/spasuite/booking-api/pkg/errors"

	"github.com/spasuite/booking-api/internal/model"
)

// Ledger is the slice of the ledger service the payment sources draw on
type Ledger interface {
	ActiveInstanceForUpdateTx(ctx context.Context, tx *sqlx.Tx, clientID uuid.UUID) (*model.PackageInstance, error)
	DebitTx(ctx context.Context, tx *sqlx.Tx, instanceID, reservationID uuid.UUID, hours float64) (*model.LedgerEntry, error)
	RedeemVoucherTx(ctx context.Context, tx *sqlx.Tx, voucherID, reservationID uuid.UUID, amount float64) (*model.RedemptionRecord, error)
}

// Source settles a reservation's payment inside the booking transaction.
// One variant per payment method instead of ad-hoc branching.
type Source interface {
	Method() model.PaymentMethod
	Settle(ctx context.Context, tx *sqlx.Tx, res *model.Reservation, hours float64) error
}

// Cash is settled at the desk; nothing to do in the booking transaction
type Cash struct{}

func (Cash) Method() model.PaymentMethod { return model.PaymentMethodCash }

func (Cash) Settle(ctx context.Context, tx *sqlx.Tx, res *model.Reservation, hours float64) error {
	return nil
}

// Card is settled by the terminal or gateway after booking
type Card struct{}

func (Card) Method() model.PaymentMethod { return model.PaymentMethodCard }

func (Card) Settle(ctx context.Context, tx *sqlx.Tx, res *model.Reservation, hours float64) error {
	return nil
}

// PackageDebit draws the variant's hours from the client's active package
type PackageDebit struct {
	ledger Ledger
}

func (PackageDebit) Method() model.PaymentMethod { return model.PaymentMethodPackage }

func (p PackageDebit) Settle(ctx context.Context, tx *sqlx.Tx, res *model.Reservation, hours float64) error {
	inst, err := p.ledger.ActiveInstanceForUpdateTx(ctx, tx, res.ClientID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.Conflictf("client has no active package")
		}
		return err
	}
	_, err = p.ledger.DebitTx(ctx, tx, inst.ID, res.ID, hours)
	return err
}

// VoucherRedemption draws the reservation total from a voucher
type VoucherRedemption struct {
	ledger    Ledger
	voucherID uuid.UUID
}

func (VoucherRedemption) Method() model.PaymentMethod { return model.PaymentMethodVoucher }

func (v VoucherRedemption) Settle(ctx context.Context, tx *sqlx.Tx, res *model.Reservation, hours float64) error {
	_, err := v.ledger.RedeemVoucherTx(ctx, tx, v.voucherID, res.ID, res.TotalPrice)
	return err
}

// Resolver maps a reservation request onto its payment source
type Resolver struct {
	ledger Ledger
}

func NewResolver(ledger Ledger) *Resolver {
	return &Resolver{ledger: ledger}
}

func (r *Resolver) SourceFor(method model.PaymentMethod, voucherID *uuid.UUID) (Source, error) {
	switch method {
	case model.PaymentMethodCash:
		return Cash{}, nil
	case model.PaymentMethodCard:
		return Card{}, nil
	case model.PaymentMethodPackage:
		return PackageDebit{ledger: r.ledger}, nil
	case model.PaymentMethodVoucher:
		if voucherID == nil {
			return nil, apperrors.Validation("voucher_id is required for voucher payment", nil)
		}
		return VoucherRedemption{ledger: r.ledger, voucherID: *voucherID}, nil
	default:
		return nil, apperrors.Validation("unsupported payment method", nil)
	}
}
