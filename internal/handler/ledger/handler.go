package ledger

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/spasuite/booking-api/internal/handler"
	"github.com/spasuite/booking-api/internal/model"
	"github.com/spasuite/booking-api/internal/service/ledger"
	"github.com/spasuite/booking-api/internal/service/notification"
)

type Handler struct {
	service      *ledger.Service
	notification *notification.Service
}

func NewHandler(service *ledger.Service, notification *notification.Service) *Handler {
	return &Handler{service: service, notification: notification}
}

func (h *Handler) SellPackage(c *gin.Context) {
	var req model.SellPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBadRequest(c, err.Error())
		return
	}

	instance, err := h.service.Sell(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(instance))
}

func (h *Handler) GetPackageInstance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid package instance ID")
		return
	}

	instance, err := h.service.GetInstance(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(instance))
}

func (h *Handler) GetActivePackage(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid client ID")
		return
	}

	instance, err := h.service.GetActiveInstance(c.Request.Context(), clientID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(instance))
}

// ListLedgerEntries returns the append-only usage history for an instance
func (h *Handler) ListLedgerEntries(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid package instance ID")
		return
	}

	entries, err := h.service.ListEntries(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(entries))
}

func (h *Handler) CreateVoucher(c *gin.Context) {
	var req model.CreateVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBadRequest(c, err.Error())
		return
	}

	voucher, err := h.service.CreateVoucher(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(voucher))
}

func (h *Handler) GetVoucher(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid voucher ID")
		return
	}

	voucher, err := h.service.GetVoucher(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(voucher))
}

func (h *Handler) RedeemVoucher(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid voucher ID")
		return
	}

	var req model.RedeemVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBadRequest(c, err.Error())
		return
	}

	record, err := h.service.RedeemVoucher(c.Request.Context(), id, req.ReservationID, req.Amount)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(record))
}

func (h *Handler) ExtendVoucher(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid voucher ID")
		return
	}

	var req model.ExtendVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBadRequest(c, err.Error())
		return
	}

	voucher, err := h.service.ExtendVoucher(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(voucher))
}

func (h *Handler) ListRedemptions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid voucher ID")
		return
	}

	records, err := h.service.ListRedemptions(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(records))
}

// ListFailedJobs exposes dead notification jobs for inspection
func (h *Handler) ListFailedJobs(c *gin.Context) {
	queue := model.QueueName(c.Query("queue"))
	switch queue {
	case model.QueueSMS, model.QueueEmail, model.QueueReport:
	default:
		handler.RespondBadRequest(c, "invalid or missing queue")
		return
	}

	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 500 {
			handler.RespondBadRequest(c, "invalid limit")
			return
		}
		limit = n
	}

	jobs, err := h.notification.ListFailed(c.Request.Context(), queue, limit)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(jobs))
}

// RetryFailedJob puts a dead job back into the pending state
func (h *Handler) RetryFailedJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid job ID")
		return
	}

	if err := h.notification.Requeue(c.Request.Context(), id); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}
