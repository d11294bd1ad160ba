package notification

import (
	"context"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"computer-booking-backend/internal/metrics"
	"computer-booking-backend/internal/model"
	"computer-booking-backend/internal/rooms"
)

// ConfirmationSubject is the subject line of booking confirmation e-mails.
const ConfirmationSubject = "Booking Confirmation"

// Confirmation describes a booking to confirm to its owner.
type Confirmation struct {
	UserID int64
	Email  string
	Room   string
	Date   string
	Period string
}

// Text is the message sent on every channel.
func (c Confirmation) Text() string {
	return rooms.ConfirmationText(c.Room, c.Period, c.Date)
}

// PushSender defines the interface for sending a web push notification.
type PushSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of PushSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubscriptionStore is the part of the store the workers need.
type SubscriptionStore interface {
	SubscriptionsForUser(ctx context.Context, userID int64) ([]model.PushSubscription, error)
	DeleteExpiredSubscription(ctx context.Context, endpoint string) error
}

// WorkerPool manages a pool of workers delivering booking confirmations.
type WorkerPool struct {
	size    int
	jobs    chan Confirmation
	subs    SubscriptionStore
	mail    MailSender
	push    PushSender
	webpush *webpush.Options
}

// NewWorkerPool creates a new worker pool. A nil webpushOptions disables push delivery.
func NewWorkerPool(size int, subs SubscriptionStore, mail MailSender, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Confirmation, size), // Buffered channel
		subs:    subs,
		mail:    mail,
		push:    &WebPushSender{}, // Use the real sender by default
		webpush: webpushOptions,
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
		case job := <-wp.jobs:
			wp.deliver(ctx, job)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a confirmation. It blocks while the queue is full, until ctx is done.
func (wp *WorkerPool) Dispatch(ctx context.Context, c Confirmation) error {
	select {
	case wp.jobs <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Confirmation {
	return wp.jobs
}

func (wp *WorkerPool) deliver(ctx context.Context, c Confirmation) {
	text := c.Text()

	if err := wp.mail.SendMail(ctx, c.Email, ConfirmationSubject, text); err != nil {
		log.Printf("Error sending confirmation to %s: %v", c.Email, err)
		metrics.Notifications.WithLabelValues("email", "error").Inc()
	} else {
		metrics.Notifications.WithLabelValues("email", "ok").Inc()
	}

	if wp.webpush == nil {
		return
	}

	subscriptions, err := wp.subs.SubscriptionsForUser(ctx, c.UserID)
	if err != nil {
		log.Printf("Error fetching subscriptions for user %d: %v", c.UserID, err)
		return
	}
	for _, sub := range subscriptions {
		wp.sendPush(ctx, sub, []byte(text))
	}
}

// sendPush sends a single web push notification.
func (wp *WorkerPool) sendPush(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.push.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		metrics.Notifications.WithLabelValues("push", "error").Inc()
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.subs.DeleteExpiredSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
		metrics.Notifications.WithLabelValues("push", "expired").Inc()
		return
	}
	metrics.Notifications.WithLabelValues("push", "ok").Inc()
}
