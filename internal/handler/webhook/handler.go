package webhook

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spasuite/booking-api/pkg/logger"

	"github.com/spasuite/booking-api/internal/handler"
	"github.com/spasuite/booking-api/internal/model"
)

// Payment event types pushed by the provider
const (
	EventReservationPaid  = "reservation.paid"
	EventVoucherPurchased = "voucher.purchased"
)

const webhookActor = "payment-webhook"

// ReservationBooker is the slice of the reservation service the webhook needs
type ReservationBooker interface {
	Create(ctx context.Context, req *model.CreateReservationRequest) (*model.Reservation, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status model.PaymentStatus) (*model.Reservation, error)
}

type VoucherIssuer interface {
	CreateVoucher(ctx context.Context, req *model.CreateVoucherRequest) (*model.Voucher, error)
}

// PaymentClaims is the signed payload of a provider callback. A reservation.paid
// event carries the full booking; the reservation is created only once the
// payment is confirmed.
type PaymentClaims struct {
	Event        string     `json:"event"`
	ClientID     *uuid.UUID `json:"client_id,omitempty"`
	TherapistID  *uuid.UUID `json:"therapist_id,omitempty"`
	RoomID       *uuid.UUID `json:"room_id,omitempty"`
	ServiceID    *uuid.UUID `json:"service_id,omitempty"`
	VariantID    *uuid.UUID `json:"variant_id,omitempty"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	Value        float64    `json:"value,omitempty"`
	ValidityDays int        `json:"validity_days,omitempty"`
	PurchaserID  *uuid.UUID `json:"purchaser_id,omitempty"`
	jwt.RegisteredClaims
}

// Handler receives signed payment-provider callbacks. The provider signs
// each payload with the shared secret; anything that fails verification is
// rejected before touching the services.
type Handler struct {
	reservations ReservationBooker
	vouchers     VoucherIssuer
	secret       []byte
	logger       *logger.Logger
}

func NewHandler(reservations ReservationBooker, vouchers VoucherIssuer, secret string, logger *logger.Logger) *Handler {
	return &Handler{
		reservations: reservations,
		vouchers:     vouchers,
		secret:       []byte(secret),
		logger:       logger,
	}
}

func (h *Handler) HandlePayment(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing signature token"))
		return
	}

	claims, err := h.verify(token)
	if err != nil {
		h.logger.Warn("rejected payment webhook", "error", err.Error())
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid signature token"))
		return
	}

	switch claims.Event {
	case EventReservationPaid:
		h.handleReservationPaid(c, claims)
	case EventVoucherPurchased:
		h.handleVoucherPurchased(c, claims)
	default:
		handler.RespondBadRequest(c, "unknown event type")
	}
}

func (h *Handler) verify(token string) (*PaymentClaims, error) {
	claims := &PaymentClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return h.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("token invalid")
	}
	return claims, nil
}

// handleReservationPaid books the reservation described by the callback and
// marks it paid, the same path a staff booking takes plus the settlement.
func (h *Handler) handleReservationPaid(c *gin.Context, claims *PaymentClaims) {
	if claims.ClientID == nil || claims.TherapistID == nil || claims.RoomID == nil ||
		claims.ServiceID == nil || claims.VariantID == nil || claims.StartTime == nil {
		handler.RespondBadRequest(c, "incomplete booking payload")
		return
	}

	res, err := h.reservations.Create(c.Request.Context(), &model.CreateReservationRequest{
		ClientID:      *claims.ClientID,
		TherapistID:   *claims.TherapistID,
		RoomID:        *claims.RoomID,
		ServiceID:     *claims.ServiceID,
		VariantID:     *claims.VariantID,
		StartTime:     *claims.StartTime,
		PaymentMethod: model.PaymentMethodCard,
		Source:        model.SourceWebhook,
		CreatedBy:     webhookActor,
	})
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	res, err = h.reservations.UpdatePaymentStatus(c.Request.Context(), res.ID, model.PaymentStatusPaid)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	h.logger.Info("reservation booked via webhook",
		"reservation_id", res.ID.String(), "sequence", res.SequenceNumber)
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(res))
}

func (h *Handler) handleVoucherPurchased(c *gin.Context, claims *PaymentClaims) {
	if claims.Value <= 0 || claims.ValidityDays <= 0 {
		handler.RespondBadRequest(c, "missing voucher value or validity")
		return
	}

	voucher, err := h.vouchers.CreateVoucher(c.Request.Context(), &model.CreateVoucherRequest{
		Kind:         model.VoucherKindMonetary,
		InitialValue: claims.Value,
		ValidityDays: claims.ValidityDays,
		PurchaserID:  claims.PurchaserID,
	})
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	h.logger.Info("voucher issued via webhook", "voucher_id", voucher.ID.String())
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(voucher))
}
