package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"reservation-backend/internal/booking"
	"reservation-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool delivers reservation transition events to the recipient's push
// subscriptions. Delivery is best-effort: a full queue drops the event and
// the engine never waits on it.
type WorkerPool struct {
	size    int
	jobs    chan booking.Event
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan booking.Event, size*8),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case event := <-wp.jobs:
			log.Printf("Worker %d processing reservation %s -> %s", id, event.ReservationID, event.Status)
			wp.deliver(ctx, event)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a transition event without blocking the caller.
func (wp *WorkerPool) Dispatch(event booking.Event) {
	select {
	case wp.jobs <- event:
	default:
		log.Printf("notification queue full, dropping event for reservation %s", event.ReservationID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan booking.Event {
	return wp.jobs
}

// deliver fetches the recipient's subscriptions and pushes the message.
func (wp *WorkerPool) deliver(ctx context.Context, event booking.Event) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Where("user_id = ?", event.RecipientID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for user %d: %v", event.RecipientID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	localLabel := fmt.Sprintf("reservation %s", event.ReservationID)
	var reservation model.Reservation
	if err := wp.db.WithContext(ctx).
		Preload("Local").
		First(&reservation, "id = ?", event.ReservationID).Error; err != nil {
		log.Printf("Error fetching reservation %s: %v", event.ReservationID, err)
	} else if reservation.Local.Name != "" {
		localLabel = fmt.Sprintf("%s on %s", reservation.Local.Name, reservation.StartsAt.Format("2006-01-02 15:04"))
	}

	message := statusMessage(event.Status, localLabel)
	log.Printf("Sending %d notifications for reservation %s", len(subscriptions), event.ReservationID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

func statusMessage(status model.ReservationStatus, label string) string {
	switch status {
	case model.StatusPending:
		return fmt.Sprintf("Your booking of %s is awaiting administrative review.", label)
	case model.StatusConfirmed:
		return fmt.Sprintf("Your booking of %s is confirmed.", label)
	case model.StatusRefused:
		return fmt.Sprintf("Your booking of %s was refused.", label)
	case model.StatusCancelledByUser:
		return fmt.Sprintf("Your booking of %s was cancelled.", label)
	case model.StatusCancelledByAdmin:
		return fmt.Sprintf("Your booking of %s was cancelled by an administrator.", label)
	}
	return fmt.Sprintf("Your booking of %s changed status.", label)
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	// Manually construct the webpush.Subscription object
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == 410 {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
