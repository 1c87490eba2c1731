package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"reservation-backend/internal/booking"
	"reservation-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	service *booking.Service
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, service *booking.Service, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		service: service,
		webpush: webpushOptions,
	}
}
