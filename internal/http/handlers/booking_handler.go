package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dkovalev/uslugi-backend/internal/dto"
	"github.com/dkovalev/uslugi-backend/internal/http/handlers/common"
	"github.com/dkovalev/uslugi-backend/internal/models"
	"github.com/dkovalev/uslugi-backend/internal/pkg/apperror"
	"github.com/dkovalev/uslugi-backend/internal/service"
)

// BookingHandler предоставляет HTTP слой для заявок на услуги.
type BookingHandler struct {
	svc *service.BookingService
}

// NewBookingHandler создаёт хэндлер.
func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	return &BookingHandler{svc: svc}
}

// Create обрабатывает POST /bookings.
func (h *BookingHandler) Create(c *gin.Context) {
	customerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	providerID, _ := uuid.Parse(req.ProviderID)

	booking, err := h.svc.CreateBooking(c.Request.Context(), customerID, service.CreateBookingInput{
		ProviderID:      providerID,
		ServiceTitle:    req.ServiceTitle,
		ScheduledAt:     req.ScheduledAt,
		CustomerComment: req.CustomerComment,
	})
	if err != nil {
		respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// Get обрабатывает GET /bookings/:id.
func (h *BookingHandler) Get(c *gin.Context) {
	callerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	bookingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	booking, err := h.svc.GetBooking(c.Request.Context(), bookingID, callerID)
	if err != nil {
		respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ListAsProvider обрабатывает GET /bookings/provider - заявки текущего исполнителя.
func (h *BookingHandler) ListAsProvider(c *gin.Context) {
	providerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	status := c.Query("status")
	if status != "" {
		if _, ok := models.ValidBookingStatuses[status]; !ok {
			common.RespondBadRequest(c, "некорректный статус заявки")
			return
		}
	}

	limit, offset := common.GetPagination(c)

	bookings, err := h.svc.ListForProvider(c.Request.Context(), providerID, status, limit, offset)
	if err != nil {
		respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// ListAsCustomer обрабатывает GET /bookings/customer - заявки текущего заказчика.
func (h *BookingHandler) ListAsCustomer(c *gin.Context) {
	customerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	status := c.Query("status")
	if status != "" {
		if _, ok := models.ValidBookingStatuses[status]; !ok {
			common.RespondBadRequest(c, "некорректный статус заявки")
			return
		}
	}

	limit, offset := common.GetPagination(c)

	bookings, err := h.svc.ListForCustomer(c.Request.Context(), customerID, status, limit, offset)
	if err != nil {
		respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// Accept обрабатывает POST /bookings/:id/accept.
func (h *BookingHandler) Accept(c *gin.Context) {
	h.transition(c, h.svc.Accept)
}

// Start обрабатывает POST /bookings/:id/start.
func (h *BookingHandler) Start(c *gin.Context) {
	h.transition(c, h.svc.Start)
}

// Complete обрабатывает POST /bookings/:id/complete.
func (h *BookingHandler) Complete(c *gin.Context) {
	h.transition(c, h.svc.Complete)
}

// Cancel обрабатывает POST /bookings/:id/cancel.
func (h *BookingHandler) Cancel(c *gin.Context) {
	callerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	bookingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	// Тело запроса опционально
	var req dto.CancelBookingRequest
	_ = c.ShouldBindJSON(&req)

	booking, err := h.svc.Cancel(c.Request.Context(), bookingID, callerID, req.Reason)
	if err != nil {
		respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

type transitionFunc func(ctx context.Context, bookingID, callerID uuid.UUID, notes *string) (*models.Booking, error)

func (h *BookingHandler) transition(c *gin.Context, fn transitionFunc) {
	callerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	bookingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	// Тело запроса опционально
	var req dto.TransitionBookingRequest
	_ = c.ShouldBindJSON(&req)

	booking, err := fn(c.Request.Context(), bookingID, callerID, req.Notes)
	if err != nil {
		respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// respondBookingError переводит ошибку сервиса в HTTP ответ.
func respondBookingError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
