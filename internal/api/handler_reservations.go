package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"reservation-backend/internal/booking"
	"reservation-backend/internal/model"
)

type submitReservationRequest struct {
	LocalID      int64     `json:"local_id" binding:"required"`
	StartsAt     time.Time `json:"starts_at" binding:"required"`
	EndsAt       time.Time `json:"ends_at" binding:"required"`
	Participants int       `json:"participants" binding:"required,min=1"`
	EventType    string    `json:"event_type"`
}

// SubmitReservation handles POST /api/reservations.
func (h *Handler) SubmitReservation(c *gin.Context) {
	principal, ok := PrincipalOrAbort(c)
	if !ok {
		return
	}

	var req submitReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reservation, err := h.service.Submit(c.Request.Context(), principal, booking.SubmitInput{
		LocalID:      req.LocalID,
		StartsAt:     req.StartsAt,
		EndsAt:       req.EndsAt,
		Participants: req.Participants,
		EventType:    req.EventType,
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}

	c.JSON(http.StatusCreated, reservation)
}

// ListMyReservations handles GET /api/reservations.
func (h *Handler) ListMyReservations(c *gin.Context) {
	principal, ok := PrincipalOrAbort(c)
	if !ok {
		return
	}

	reservations, err := h.service.ListMine(c.Request.Context(), principal)
	if err != nil {
		writeBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservations)
}

type decisionRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
	Reason   string `json:"reason"`
}

// DecideReservation handles POST /api/reservations/:id/decision (admin only).
func (h *Handler) DecideReservation(c *gin.Context) {
	principal, ok := PrincipalOrAbort(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reservation id"})
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reservation, err := h.service.Decide(c.Request.Context(), principal, id, req.Decision == "approve", req.Reason)
	if err != nil {
		writeBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelReservation handles POST /api/reservations/:id/cancel.
func (h *Handler) CancelReservation(c *gin.Context) {
	principal, ok := PrincipalOrAbort(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reservation id"})
		return
	}

	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	reservation, err := h.service.Cancel(c.Request.Context(), principal, id, req.Reason)
	if err != nil {
		writeBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// History handles GET /api/reservations/history (admin only).
func (h *Handler) History(c *gin.Context) {
	var filter booking.HistoryFilter

	if v := c.Query("local_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid local_id"})
			return
		}
		filter.LocalID = &id
	}
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		filter.UserID = &id
	}
	if v := c.Query("status"); v != "" {
		status := model.ReservationStatus(v)
		filter.Status = &status
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from' timestamp format. Use RFC3339."})
			return
		}
		filter.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to' timestamp format. Use RFC3339."})
			return
		}
		filter.To = &t
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))

	reservations, err := h.service.History(c.Request.Context(), filter)
	if err != nil {
		writeBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservations)
}

// writeBookingError maps the engine's typed outcomes onto HTTP responses.
// Only unexpected errors become a generic 500.
func writeBookingError(c *gin.Context, err error) {
	var violation *booking.PolicyViolation
	switch {
	case errors.As(err, &violation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": string(violation.Kind), "detail": violation.Detail})
	case errors.Is(err, booking.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	case errors.Is(err, booking.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, booking.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_transition"})
	case errors.Is(err, booking.ErrCancellationTooLate):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cancellation_too_late"})
	case errors.Is(err, booking.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, booking.ErrLocalUnavailable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "local_unavailable"})
	case errors.Is(err, booking.ErrInvalidInterval):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_interval"})
	case errors.Is(err, booking.ErrReasonRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason_required"})
	case errors.Is(err, booking.ErrBusy):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "busy"})
	default:
		log.Printf("unexpected booking error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
