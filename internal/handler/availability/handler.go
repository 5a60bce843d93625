package availability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/spasuite/booking-api/internal/handler"
	"github.com/spasuite/booking-api/internal/service/availability"
)

type Handler struct {
	service *availability.Service
}

func NewHandler(service *availability.Service) *Handler {
	return &Handler{service: service}
}

// ListSlots returns the bookable slots for a date and treatment variant.
// Optional therapist_id narrows the search to one therapist.
func (h *Handler) ListSlots(c *gin.Context) {
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid or missing date, expected YYYY-MM-DD")
		return
	}

	variantID, err := uuid.Parse(c.Query("variant_id"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid or missing variant_id")
		return
	}

	var therapistID *uuid.UUID
	if id := c.Query("therapist_id"); id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			handler.RespondBadRequest(c, "invalid therapist_id")
			return
		}
		therapistID = &parsed
	}

	slots, err := h.service.ComputeSlotsForVariant(c.Request.Context(), date, variantID, therapistID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(slots))
}
