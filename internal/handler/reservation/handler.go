package reservation

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/spasuite/booking-api/internal/handler"
	"github.com/spasuite/booking-api/internal/model"
	"github.com/spasuite/booking-api/internal/service/reservation"
)

type Handler struct {
	service *reservation.Service
}

func NewHandler(service *reservation.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) CreateReservation(c *gin.Context) {
	var req model.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBadRequest(c, err.Error())
		return
	}
	if req.Source == "" {
		req.Source = model.SourceStaff
	}

	res, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(res))
}

func (h *Handler) GetReservation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid reservation ID")
		return
	}

	res, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(res))
}

func (h *Handler) GetReservationAddOns(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid reservation ID")
		return
	}

	addOns, err := h.service.GetAddOns(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(addOns))
}

func (h *Handler) ListReservations(c *gin.Context) {
	filters := &model.ReservationFilters{}

	if id := c.Query("therapist_id"); id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			handler.RespondBadRequest(c, "invalid therapist_id")
			return
		}
		filters.TherapistID = &parsed
	}
	if id := c.Query("client_id"); id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			handler.RespondBadRequest(c, "invalid client_id")
			return
		}
		filters.ClientID = &parsed
	}
	if id := c.Query("room_id"); id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			handler.RespondBadRequest(c, "invalid room_id")
			return
		}
		filters.RoomID = &parsed
	}
	if status := c.Query("status"); status != "" {
		s := model.ReservationStatus(status)
		filters.Status = &s
	}
	if date := c.Query("date_from"); date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			handler.RespondBadRequest(c, "invalid date_from, expected YYYY-MM-DD")
			return
		}
		filters.DateFrom = &parsed
	}
	if date := c.Query("date_to"); date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			handler.RespondBadRequest(c, "invalid date_to, expected YYYY-MM-DD")
			return
		}
		filters.DateTo = &parsed
	}

	reservations, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(reservations))
}

func (h *Handler) UpdateReservation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid reservation ID")
		return
	}

	var req model.UpdateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBadRequest(c, err.Error())
		return
	}

	res, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(res))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid reservation ID")
		return
	}

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBadRequest(c, err.Error())
		return
	}

	res, err := h.service.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(res))
}

func (h *Handler) UpdatePaymentStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid reservation ID")
		return
	}

	var req model.UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBadRequest(c, err.Error())
		return
	}

	res, err := h.service.UpdatePaymentStatus(c.Request.Context(), id, req.PaymentStatus)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(res))
}

// CancelReservation is the soft delete: the row stays, the slot frees
func (h *Handler) CancelReservation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid reservation ID")
		return
	}

	res, err := h.service.Cancel(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(res))
}

// PurgeReservation removes the row entirely. Only cancelled and no-show
// rows qualify.
func (h *Handler) PurgeReservation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid reservation ID")
		return
	}

	if err := h.service.HardDelete(c.Request.Context(), id); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}
