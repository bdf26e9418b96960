package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"

	"plantops-backend/internal/model"
)

// BookingFilter narrows ListBookings. Code takes precedence over Date/Slot and
// also matches cancelled rows whose code was rewritten from it.
type BookingFilter struct {
	Date *time.Time
	Slot string
	Code string
}

// LockBookingSlot takes a transaction-scoped advisory lock on key. It is a
// no-op outside postgres; sqlite already serialises writers.
func (s *gormStore) LockBookingSlot(ctx context.Context, key string) error {
	if !s.isPostgres() {
		return nil
	}
	if err := s.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error; err != nil {
		return translate(err, "advisory lock "+key)
	}
	return nil
}

// DayBookings returns every non-deleted booking on date.
func (s *gormStore) DayBookings(ctx context.Context, date time.Time) ([]model.Booking, error) {
	var bookings []model.Booking
	err := s.db.WithContext(ctx).
		Where("date = ? AND deleted_at IS NULL", date).
		Order("queue_no ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, translate(err, "bookings for "+date.Format("2006-01-02"))
	}
	return bookings, nil
}

// FindBookingByCode looks up a booking by exact code, deleted rows included.
func (s *gormStore) FindBookingByCode(ctx context.Context, code string) (*model.Booking, error) {
	var b model.Booking
	if err := s.db.WithContext(ctx).Where("booking_code = ?", code).First(&b).Error; err != nil {
		return nil, translate(err, "booking code "+code)
	}
	return &b, nil
}

// MaxQueueNo returns the highest queue number among live bookings whose code
// starts with codePrefix, or 0 when there are none.
func (s *gormStore) MaxQueueNo(ctx context.Context, codePrefix string) (int, error) {
	var max sql.NullInt64
	err := s.db.WithContext(ctx).Model(&model.Booking{}).
		Where("booking_code LIKE ? AND deleted_at IS NULL", codePrefix+"%").
		Select("MAX(queue_no)").
		Row().Scan(&max)
	if err != nil {
		return 0, translate(err, "max queue number for "+codePrefix)
	}
	return int(max.Int64), nil
}

// CreateBooking inserts b inside a savepoint so that a unique violation leaves
// the surrounding transaction usable.
func (s *gormStore) CreateBooking(ctx context.Context, b *model.Booking) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(b).Error
	})
	return translate(err, "booking "+b.BookingCode)
}

func (s *gormStore) RenameBookingCode(ctx context.Context, id, code string) error {
	err := s.db.WithContext(ctx).Model(&model.Booking{}).
		Where("id = ?", id).
		Update("booking_code", code).Error
	return translate(err, "booking "+id)
}

// GetBooking loads a booking by id, including cancelled ones.
func (s *gormStore) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	var b model.Booking
	if err := s.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, translate(err, "booking "+id)
	}
	return &b, nil
}

func (s *gormStore) ListBookings(ctx context.Context, f BookingFilter) ([]model.Booking, error) {
	q := s.db.WithContext(ctx).Preload("LabSamples", func(db *gorm.DB) *gorm.DB {
		return db.Order("is_trailer ASC, sample_no ASC")
	})
	if f.Code != "" {
		q = q.Where("booking_code = ? OR booking_code LIKE ?", f.Code, fmt.Sprintf("CANCELLED-%s-%%", f.Code))
	} else {
		if f.Date != nil {
			q = q.Where("date = ?", *f.Date)
		}
		if f.Slot != "" {
			q = q.Where("slot = ?", f.Slot)
		}
		q = q.Where("deleted_at IS NULL")
	}

	var bookings []model.Booking
	if err := q.Order("queue_no ASC").Find(&bookings).Error; err != nil {
		return nil, translate(err, "bookings")
	}
	return bookings, nil
}

// UpdateBooking applies a column patch. Unknown ids yield NotFound.
func (s *gormStore) UpdateBooking(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&model.Booking{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return translate(res.Error, "booking "+id)
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "booking "+id)
	}
	return nil
}

// PurgeBooking physically removes a booking and its lab samples.
func (s *gormStore) PurgeBooking(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("booking_id = ?", id).Delete(&model.BookingLabSample{}).Error; err != nil {
			return translate(err, "samples of booking "+id)
		}
		res := tx.Where("id = ?", id).Delete(&model.Booking{})
		if res.Error != nil {
			return translate(res.Error, "booking "+id)
		}
		if res.RowsAffected == 0 {
			return translate(gorm.ErrRecordNotFound, "booking "+id)
		}
		return nil
	})
}
