package api

import (
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"plantops-backend/internal/apperr"
	"plantops-backend/internal/approval"
	"plantops-backend/internal/auth"
	"plantops-backend/internal/booking"
	"plantops-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	bookings  *booking.Service
	approvals *approval.Service
	authz     auth.Authorizer
	webpush   *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, bookings *booking.Service, approvals *approval.Service, authz auth.Authorizer, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:     s,
		bookings:  bookings,
		approvals: approvals,
		authz:     authz,
		webpush:   webpushOptions,
	}
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:             http.StatusBadRequest,
	apperr.KindCapacityExceeded:       http.StatusConflict,
	apperr.KindDuplicateConstraint:    http.StatusConflict,
	apperr.KindNotFound:               http.StatusNotFound,
	apperr.KindInvalidStateTransition: http.StatusConflict,
	apperr.KindForbidden:              http.StatusForbidden,
	apperr.KindPersistence:            http.StatusInternalServerError,
}

// respondError renders err as {"error": kind, "message": text}.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	msg := apperr.MessageOf(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": string(kind), "message": msg})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": string(apperr.KindValidation), "message": err.Error()})
}

// Health reports whether the database answers.
func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
