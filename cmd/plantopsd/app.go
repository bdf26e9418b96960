package main

import (
	"fmt"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"plantops-backend/config"
	"plantops-backend/internal/approval"
	"plantops-backend/internal/auth"
	"plantops-backend/internal/booking"
	"plantops-backend/internal/notification"
	"plantops-backend/internal/store"
)

// app is the wired service graph shared by the subcommands.
type app struct {
	store     store.Store
	workers   *notification.WorkerPool
	bookings  *booking.Service
	approvals *approval.Service
	authz     auth.Authorizer
	webpush   *webpush.Options
}

func newApp(cfg *config.Config, gormDB *gorm.DB) (*app, error) {
	loc, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		return nil, fmt.Errorf("booking timezone %q: %w", cfg.Booking.Timezone, err)
	}

	webpushOptions := &webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Println("VAPID keys are not configured; web push is disabled, in-app notifications still work")
		webpushOptions = nil
	}

	s := store.NewGormStore(gormDB)
	workers := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, s, webpushOptions)
	authz := auth.NewRoleAuthorizer(cfg.Auth.AdminRole)

	bookings := booking.NewService(s, workers, booking.Options{
		Slots:          booking.NewSlotTable(cfg.Booking.Slots),
		Location:       loc,
		MaxCodeRetries: cfg.Booking.MaxCodeRetries,
		NotifyRoles:    cfg.Booking.NotifyRoles,
	})
	approvals := approval.NewService(s, workers, authz, approval.NewRegistry(), approval.Options{
		AdminRoles:    []string{cfg.Auth.AdminRole},
		DefaultExpiry: time.Duration(cfg.Approval.DefaultExpiryHours) * time.Hour,
	})

	return &app{
		store:     s,
		workers:   workers,
		bookings:  bookings,
		approvals: approvals,
		authz:     authz,
		webpush:   webpushOptions,
	}, nil
}
