package calendar

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/spasuite/booking-api/internal/handler"
	"github.com/spasuite/booking-api/internal/model"
	"github.com/spasuite/booking-api/internal/service/calendar"
)

type Handler struct {
	service *calendar.Service
}

func NewHandler(service *calendar.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) UpsertEntry(c *gin.Context) {
	var req model.UpsertCalendarEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBadRequest(c, err.Error())
		return
	}

	entry, err := h.service.Upsert(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(entry))
}

// ListEntries serves either one day across all therapists, or a range for
// one therapist
func (h *Handler) ListEntries(c *gin.Context) {
	if id := c.Query("therapist_id"); id != "" {
		h.listRange(c, id)
		return
	}

	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid or missing date, expected YYYY-MM-DD")
		return
	}

	entries, err := h.service.ListForDate(c.Request.Context(), date)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(entries))
}

func (h *Handler) listRange(c *gin.Context, id string) {
	therapistID, err := uuid.Parse(id)
	if err != nil {
		handler.RespondBadRequest(c, "invalid therapist_id")
		return
	}

	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid or missing from, expected YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid or missing to, expected YYYY-MM-DD")
		return
	}

	entries, err := h.service.ListRange(c.Request.Context(), therapistID, from, to)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(entries))
}
