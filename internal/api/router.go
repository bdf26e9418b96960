package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"plantops-backend/config"
	"plantops-backend/internal/auth"
	"plantops-backend/internal/metrics"
	"plantops-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, secret []byte, h *Handler) *gin.Engine {
	r := gin.Default()
	r.Use(mw.Metrics())

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	responses := mw.NewResponseCache(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	caching := responses.Cache()
	allow := func(action string) gin.HandlerFunc { return mw.Require(h.authz, action) }

	api := r.Group("/api")
	api.Use(rateLimiter)
	api.GET("/vapid_public_key", h.GetVAPIDPublicKey)

	authed := api.Group("")
	authed.Use(mw.Authenticate(secret), responses.Invalidate())
	{
		authed.GET("/slots", caching, h.GetSlots)

		bookings := authed.Group("/bookings")
		bookings.GET("", allow(auth.ActionBookingsRead), h.ListBookings)
		bookings.POST("", allow(auth.ActionBookingsCreate), h.CreateBooking)
		bookings.GET("/stats", allow(auth.ActionBookingsRead), caching, h.GetStats)
		bookings.GET("/:id", allow(auth.ActionBookingsRead), h.GetBooking)
		bookings.PATCH("/:id", allow(auth.ActionBookingsUpdate), h.UpdateBooking)
		bookings.DELETE("/:id", allow(auth.ActionBookingsDelete), h.CancelBooking)
		bookings.DELETE("/:id/purge", allow(auth.ActionBookingsPurge), h.PurgeBooking)

		bookings.POST("/:id/check-in", allow(auth.ActionBookingsUpdate), h.CheckIn)
		bookings.POST("/:id/start-drain", allow(auth.ActionBookingsUpdate), h.StartDrain)
		bookings.POST("/:id/stop-drain", allow(auth.ActionBookingsUpdate), h.StopDrain)
		bookings.POST("/:id/weigh-in", allow(auth.ActionTruckScaleUpdate), h.WeighIn)
		bookings.POST("/:id/weigh-out", allow(auth.ActionTruckScaleUpdate), h.WeighOut)

		bookings.GET("/:id/samples", allow(auth.ActionBookingsRead), h.ListSamples)
		bookings.POST("/:id/samples", allow(auth.ActionBookingsUpdate), h.SaveSample)
		bookings.DELETE("/:id/samples/:sampleId", allow(auth.ActionBookingsUpdate), h.DeleteSample)

		approvals := authed.Group("/approvals")
		approvals.POST("", h.CreateApproval)
		approvals.GET("", allow(auth.ActionApprovalsView), h.ListApprovals)
		approvals.GET("/mine", h.MyApprovals)
		approvals.GET("/:id", h.GetApproval)
		approvals.GET("/:id/history", allow(auth.ActionApprovalsView), h.ApprovalHistory)
		approvals.POST("/:id/approve", h.ApproveApproval)
		approvals.POST("/:id/reject", h.RejectApproval)
		approvals.POST("/:id/return", h.ReturnApproval)
		approvals.POST("/:id/cancel", h.CancelApproval)
		approvals.POST("/:id/void", h.VoidApproval)
		approvals.DELETE("/:id", allow(auth.ActionApprovalsVoid), h.DeleteApproval)

		authed.GET("/notifications", h.ListNotifications)
		authed.POST("/notifications/:id/read", h.MarkNotificationRead)

		authed.GET("/subscriptions", h.GetSubscription)
		authed.PUT("/subscriptions", h.PutSubscription)
		authed.DELETE("/subscriptions", h.DeleteSubscription)
	}

	return r
}
