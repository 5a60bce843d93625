package model

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationStatusNew        ReservationStatus = "NEW"
	ReservationStatusConfirmed  ReservationStatus = "CONFIRMED"
	ReservationStatusInProgress ReservationStatus = "IN_PROGRESS"
	ReservationStatusCompleted  ReservationStatus = "COMPLETED"
	ReservationStatusCancelled  ReservationStatus = "CANCELLED"
	ReservationStatusNoShow     ReservationStatus = "NO_SHOW"
)

// Terminal reports whether no further lifecycle transition is allowed
func (s ReservationStatus) Terminal() bool {
	return s == ReservationStatusCompleted || s == ReservationStatusCancelled
}

// Blocks reports whether a reservation in this status occupies its
// therapist and room. Cancelled and no-show rows free their slot.
func (s ReservationStatus) Blocks() bool {
	return s != ReservationStatusCancelled && s != ReservationStatusNoShow
}

// CanTransitionTo enforces the forward-only lifecycle
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case ReservationStatusCancelled, ReservationStatusNoShow:
		return true
	case ReservationStatusConfirmed:
		return s == ReservationStatusNew
	case ReservationStatusInProgress:
		return s == ReservationStatusConfirmed
	case ReservationStatusCompleted:
		return s == ReservationStatusInProgress
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentStatusUnpaid        PaymentStatus = "UNPAID"
	PaymentStatusPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentStatusPaid          PaymentStatus = "PAID"
	PaymentStatusRefunded      PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "CASH"
	PaymentMethodCard    PaymentMethod = "CARD"
	PaymentMethodPackage PaymentMethod = "PACKAGE"
	PaymentMethodVoucher PaymentMethod = "VOUCHER"
)

type ReservationSource string

const (
	SourceStaff   ReservationSource = "STAFF"
	SourceOnline  ReservationSource = "ONLINE"
	SourceWebhook ReservationSource = "WEBHOOK"
)

// Reservation is the booking row. Owned exclusively by the reservation
// service; never mutated outside its operations.
type Reservation struct {
	Base
	SequenceNumber string            `json:"sequence_number" db:"sequence_number"`
	ClientID       uuid.UUID         `json:"client_id" db:"client_id"`
	TherapistID    uuid.UUID         `json:"therapist_id" db:"therapist_id"`
	RoomID         uuid.UUID         `json:"room_id" db:"room_id"`
	ServiceID      uuid.UUID         `json:"service_id" db:"service_id"`
	VariantID      uuid.UUID         `json:"variant_id" db:"variant_id"`
	Date           time.Time         `json:"date" db:"date"`
	StartTime      time.Time         `json:"start_time" db:"start_time"`
	EndTime        time.Time         `json:"end_time" db:"end_time"`
	TotalPrice     float64           `json:"total_price" db:"total_price"`
	Status         ReservationStatus `json:"status" db:"status"`
	PaymentStatus  PaymentStatus     `json:"payment_status" db:"payment_status"`
	PaymentMethod  PaymentMethod     `json:"payment_method" db:"payment_method"`
	Source         ReservationSource `json:"source" db:"source"`
	Notes          string            `json:"notes" db:"notes"`
	CreatedBy      string            `json:"created_by" db:"created_by"`
}

// ReservationAddOn is a price snapshot taken at booking time
type ReservationAddOn struct {
	ReservationID uuid.UUID `json:"reservation_id" db:"reservation_id"`
	AddOnID       uuid.UUID `json:"add_on_id" db:"add_on_id"`
	Price         float64   `json:"price" db:"price"`
}

// Slot is a candidate (start, end, therapist, room) tuple offered for booking
type Slot struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	TherapistID uuid.UUID `json:"therapist_id"`
	RoomID      uuid.UUID `json:"room_id"`
}

type CreateReservationRequest struct {
	ClientID      uuid.UUID         `json:"client_id" binding:"required"`
	TherapistID   uuid.UUID         `json:"therapist_id" binding:"required"`
	RoomID        uuid.UUID         `json:"room_id" binding:"required"`
	ServiceID     uuid.UUID         `json:"service_id" binding:"required"`
	VariantID     uuid.UUID         `json:"variant_id" binding:"required"`
	StartTime     time.Time         `json:"start_time" binding:"required"`
	PaymentMethod PaymentMethod     `json:"payment_method" binding:"required,oneof=CASH CARD PACKAGE VOUCHER"`
	VoucherID     *uuid.UUID        `json:"voucher_id"`
	AddOnIDs      []uuid.UUID       `json:"add_on_ids"`
	Source        ReservationSource `json:"source"`
	Notes         string            `json:"notes" binding:"max=1000"`
	CreatedBy     string            `json:"created_by"`
}

type UpdateReservationRequest struct {
	TherapistID *uuid.UUID `json:"therapist_id"`
	RoomID      *uuid.UUID `json:"room_id"`
	StartTime   *time.Time `json:"start_time"`
	Notes       *string    `json:"notes"`
}

type UpdateStatusRequest struct {
	Status ReservationStatus `json:"status" binding:"required,oneof=NEW CONFIRMED IN_PROGRESS COMPLETED CANCELLED NO_SHOW"`
}

type UpdatePaymentRequest struct {
	PaymentStatus PaymentStatus `json:"payment_status" binding:"required,oneof=UNPAID PARTIALLY_PAID PAID REFUNDED"`
}

type ReservationFilters struct {
	TherapistID *uuid.UUID
	ClientID    *uuid.UUID
	RoomID      *uuid.UUID
	Status      *ReservationStatus
	DateFrom    *time.Time
	DateTo      *time.Time
}
