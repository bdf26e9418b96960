package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"plantops-backend/internal/apperr"
	"plantops-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB
	// Transaction runs fn against a Store bound to a single transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	// Bookings
	LockBookingSlot(ctx context.Context, key string) error
	DayBookings(ctx context.Context, date time.Time) ([]model.Booking, error)
	FindBookingByCode(ctx context.Context, code string) (*model.Booking, error)
	MaxQueueNo(ctx context.Context, codePrefix string) (int, error)
	CreateBooking(ctx context.Context, b *model.Booking) error
	RenameBookingCode(ctx context.Context, id, code string) error
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	ListBookings(ctx context.Context, f BookingFilter) ([]model.Booking, error)
	UpdateBooking(ctx context.Context, id string, fields map[string]any) error
	PurgeBooking(ctx context.Context, id string) error

	// Lab samples
	ListSamples(ctx context.Context, bookingID string) ([]model.BookingLabSample, error)
	GetSample(ctx context.Context, id string) (*model.BookingLabSample, error)
	MaxSampleNo(ctx context.Context, bookingID string, isTrailer bool) (int, error)
	CreateSample(ctx context.Context, s *model.BookingLabSample) error
	SaveSample(ctx context.Context, s *model.BookingLabSample) error
	DeleteSample(ctx context.Context, bookingID, id string) (bool, error)

	// Approvals
	CreateApproval(ctx context.Context, r *model.ApprovalRequest) error
	GetApproval(ctx context.Context, id string, withLogs bool) (*model.ApprovalRequest, error)
	ListApprovals(ctx context.Context, f ApprovalFilter) ([]model.ApprovalRequest, error)
	TransitionApproval(ctx context.Context, id, from string, fields map[string]any) (bool, error)
	MarkApprovalDeleted(ctx context.Context, id, by string, at time.Time) (bool, error)
	AppendApprovalLog(ctx context.Context, l *model.ApprovalLog) error
	ApprovalHistory(ctx context.Context, id string) ([]model.ApprovalLog, error)
	ExpiredApprovals(ctx context.Context, now time.Time) ([]model.ApprovalRequest, error)

	// Directory
	FindUser(ctx context.Context, id string) (*model.User, error)
	UserIDsByRole(ctx context.Context, roles ...string) ([]string, error)

	// Notifications
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	ListSubscriptions(ctx context.Context, userID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// ErrUniqueViolation is returned when an insert or update hits a unique index.
var ErrUniqueViolation = errors.New("unique constraint violation")

// IsUniqueViolation recognises unique-index failures from every supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUniqueViolation) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// translate maps driver errors to the application error taxonomy. what
// names the record involved, e.g. "booking 42".
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound("%s not found", what)
	case IsUniqueViolation(err):
		return fmt.Errorf("%s: %w: %v", what, ErrUniqueViolation, err)
	}
	return apperr.Persistence(err, "%s", what)
}

func (s *gormStore) isPostgres() bool {
	return s.db.Dialector != nil && s.db.Dialector.Name() == "postgres"
}
