package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/spasuite/booking-api/internal/handler"
	"github.com/spasuite/booking-api/internal/model"
	"github.com/spasuite/booking-api/internal/repository"
)

// Handler serves the catalog rows the booking flow validates against.
// Thin enough to sit directly on the repository.
type Handler struct {
	repo repository.CatalogRepository
}

func NewHandler(repo repository.CatalogRepository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) ListTherapists(c *gin.Context) {
	therapists, err := h.repo.ListActiveTherapists(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(therapists))
}

func (h *Handler) CreateTherapist(c *gin.Context) {
	var req model.CreateTherapistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBadRequest(c, err.Error())
		return
	}

	therapist := &model.Therapist{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Active:    true,
	}
	if err := h.repo.CreateTherapist(c.Request.Context(), therapist); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(therapist))
}

func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.repo.ListActiveRooms(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(rooms))
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var req model.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBadRequest(c, err.Error())
		return
	}

	room := &model.Room{
		Name:     req.Name,
		Position: req.Position,
		Active:   true,
	}
	if err := h.repo.CreateRoom(c.Request.Context(), room); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(room))
}

func (h *Handler) ListServices(c *gin.Context) {
	services, err := h.repo.ListServices(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(services))
}

func (h *Handler) ListVariants(c *gin.Context) {
	serviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondBadRequest(c, "invalid service ID")
		return
	}

	variants, err := h.repo.ListVariants(c.Request.Context(), serviceID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(variants))
}
