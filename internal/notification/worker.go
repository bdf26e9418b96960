package notification

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"plantops-backend/internal/metrics"
	"plantops-backend/internal/model"
	"plantops-backend/internal/store"
)

// ErrQueueFull is returned by Notify when the job queue has no room.
var ErrQueueFull = errors.New("notification queue is full")

// Message is one event to deliver to a set of users.
type Message struct {
	UserIDs    []string
	Title      string
	Message    string
	SourceApp  string
	ActionType string
	EntityID   string
	ActionURL  string
}

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

// WorkerPool manages a pool of workers for delivering notifications.
type WorkerPool struct {
	size    int
	jobs    chan Message
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool. A nil webpushOptions stores
// in-app notifications only.
func NewWorkerPool(size, queueSize int, s store.Store, webpushOptions *webpush.Options) *WorkerPool {
	if queueSize < size {
		queueSize = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Message, queueSize), // Buffered channel
		store:   s,
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
		case msg := <-wp.jobs:
			log.Printf("Worker %d delivering %s:%s to %d users", id, msg.SourceApp, msg.ActionType, len(msg.UserIDs))
			wp.deliver(ctx, msg)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Notify queues msg without blocking. Callers log the error and carry on.
func (wp *WorkerPool) Notify(ctx context.Context, msg Message) error {
	if len(msg.UserIDs) == 0 {
		return nil
	}
	select {
	case wp.jobs <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		metrics.NotificationDelivered("queue", "dropped")
		return ErrQueueFull
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Message {
	return wp.jobs
}

// deliver stores one in-app notification per user and pushes it to every
// browser subscription the user has registered.
func (wp *WorkerPool) deliver(ctx context.Context, msg Message) {
	payload, err := json.Marshal(map[string]string{
		"title": msg.Title,
		"body":  msg.Message,
		"url":   msg.ActionURL,
	})
	if err != nil {
		log.Printf("Error encoding push payload: %v", err)
		return
	}

	for _, userID := range msg.UserIDs {
		n := &model.Notification{
			UserID:     userID,
			Title:      msg.Title,
			Message:    msg.Message,
			SourceApp:  msg.SourceApp,
			ActionType: msg.ActionType,
			EntityID:   msg.EntityID,
			ActionURL:  msg.ActionURL,
		}
		if err := wp.store.CreateNotification(ctx, n); err != nil {
			log.Printf("Error storing notification for user %s: %v", userID, err)
			metrics.NotificationDelivered("inapp", "error")
		} else {
			metrics.NotificationDelivered("inapp", "ok")
		}

		if wp.webpush == nil {
			continue
		}
		subscriptions, err := wp.store.ListSubscriptions(ctx, userID)
		if err != nil {
			log.Printf("Error fetching subscriptions for user %s: %v", userID, err)
			continue
		}
		for _, sub := range subscriptions {
			wp.sendNotification(ctx, sub, payload)
		}
	}
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
		metrics.NotificationDelivered("webpush", "error")
		return
	}
	defer resp.Body.Close()
	metrics.NotificationDelivered("webpush", "ok")

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
