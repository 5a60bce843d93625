package model

import (
	"time"

	"github.com/google/uuid"
)

type PackageStatus string

const (
	PackageStatusActive  PackageStatus = "ACTIVE"
	PackageStatusUsed    PackageStatus = "USED"
	PackageStatusExpired PackageStatus = "EXPIRED"
)

// PackageDefinition is the sellable catalog row for hour bundles
type PackageDefinition struct {
	Base
	Name         string  `json:"name" db:"name"`
	Hours        float64 `json:"hours" db:"hours"`
	Price        float64 `json:"price" db:"price"`
	ValidityDays int     `json:"validity_days" db:"validity_days"`
	Active       bool    `json:"active" db:"active"`
}

// PackageInstance is a client's purchased bundle of consumable hours.
// remaining_hours and used_hours are a projection of the ledger entries;
// the ledger rows are the source of truth.
type PackageInstance struct {
	Base
	ClientID       uuid.UUID     `json:"client_id" db:"client_id"`
	DefinitionID   uuid.UUID     `json:"definition_id" db:"definition_id"`
	PurchasedHours float64       `json:"purchased_hours" db:"purchased_hours"`
	UsedHours      float64       `json:"used_hours" db:"used_hours"`
	RemainingHours float64       `json:"remaining_hours" db:"remaining_hours"`
	ExpiryDate     time.Time     `json:"expiry_date" db:"expiry_date"`
	Status         PackageStatus `json:"status" db:"status"`
}

type LedgerEntryKind string

const (
	LedgerEntryDebit  LedgerEntryKind = "DEBIT"
	LedgerEntryCredit LedgerEntryKind = "CREDIT"
)

// LedgerEntry is an append-only usage row. Refunds are recorded as
// compensating CREDIT rows, never as deletes.
type LedgerEntry struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	InstanceID    uuid.UUID       `json:"instance_id" db:"instance_id"`
	ReservationID uuid.UUID       `json:"reservation_id" db:"reservation_id"`
	Kind          LedgerEntryKind `json:"kind" db:"kind"`
	Hours         float64         `json:"hours" db:"hours"`
	BalanceAfter  float64         `json:"balance_after" db:"balance_after"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

type VoucherKind string

const (
	VoucherKindMonetary VoucherKind = "MONETARY"
	VoucherKindService  VoucherKind = "SERVICE"
)

type VoucherStatus string

const (
	VoucherStatusActive  VoucherStatus = "ACTIVE"
	VoucherStatusUsed    VoucherStatus = "USED"
	VoucherStatusExpired VoucherStatus = "EXPIRED"
)

// Voucher is a purchased, code-redeemable stored-value credit
type Voucher struct {
	Base
	Code           string        `json:"code" db:"code"`
	Kind           VoucherKind   `json:"kind" db:"kind"`
	InitialValue   float64       `json:"initial_value" db:"initial_value"`
	RemainingValue float64       `json:"remaining_value" db:"remaining_value"`
	ExpiryDate     time.Time     `json:"expiry_date" db:"expiry_date"`
	Status         VoucherStatus `json:"status" db:"status"`
	PurchaserID    *uuid.UUID    `json:"purchaser_id,omitempty" db:"purchaser_id"`
}

// RedemptionRecord is an append-only voucher draw-down row
type RedemptionRecord struct {
	ID            uuid.UUID `json:"id" db:"id"`
	VoucherID     uuid.UUID `json:"voucher_id" db:"voucher_id"`
	ReservationID uuid.UUID `json:"reservation_id" db:"reservation_id"`
	Amount        float64   `json:"amount" db:"amount"`
	BalanceAfter  float64   `json:"balance_after" db:"balance_after"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// PaymentTransaction records the money side of a package sale
type PaymentTransaction struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	ClientID      uuid.UUID     `json:"client_id" db:"client_id"`
	InstanceID    *uuid.UUID    `json:"instance_id,omitempty" db:"instance_id"`
	Amount        float64       `json:"amount" db:"amount"`
	PaymentMethod PaymentMethod `json:"payment_method" db:"payment_method"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

type SellPackageRequest struct {
	ClientID      uuid.UUID     `json:"client_id" binding:"required"`
	DefinitionID  uuid.UUID     `json:"definition_id" binding:"required"`
	PaymentMethod PaymentMethod `json:"payment_method" binding:"required,oneof=CASH CARD"`
}

type CreateVoucherRequest struct {
	Kind         VoucherKind `json:"kind" binding:"required,oneof=MONETARY SERVICE"`
	InitialValue float64     `json:"initial_value" binding:"required,gt=0"`
	ValidityDays int         `json:"validity_days" binding:"required,gt=0"`
	PurchaserID  *uuid.UUID  `json:"purchaser_id"`
}

type RedeemVoucherRequest struct {
	ReservationID uuid.UUID `json:"reservation_id" binding:"required"`
	Amount        float64   `json:"amount" binding:"required,gt=0"`
}

type ExtendVoucherRequest struct {
	ExtraDays  int     `json:"extra_days" binding:"min=0"`
	ExtraValue float64 `json:"extra_value" binding:"min=0"`
}
