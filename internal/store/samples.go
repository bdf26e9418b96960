package store

import (
	"context"
	"database/sql"

	"plantops-backend/internal/model"
)

func (s *gormStore) ListSamples(ctx context.Context, bookingID string) ([]model.BookingLabSample, error) {
	var samples []model.BookingLabSample
	err := s.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("is_trailer ASC, sample_no ASC").
		Find(&samples).Error
	if err != nil {
		return nil, translate(err, "samples of booking "+bookingID)
	}
	return samples, nil
}

func (s *gormStore) GetSample(ctx context.Context, id string) (*model.BookingLabSample, error) {
	var sample model.BookingLabSample
	if err := s.db.WithContext(ctx).First(&sample, "id = ?", id).Error; err != nil {
		return nil, translate(err, "sample "+id)
	}
	return &sample, nil
}

// MaxSampleNo returns the highest sample number in one channel of a booking.
func (s *gormStore) MaxSampleNo(ctx context.Context, bookingID string, isTrailer bool) (int, error) {
	var max sql.NullInt64
	err := s.db.WithContext(ctx).Model(&model.BookingLabSample{}).
		Where("booking_id = ? AND is_trailer = ?", bookingID, isTrailer).
		Select("MAX(sample_no)").
		Row().Scan(&max)
	if err != nil {
		return 0, translate(err, "max sample number of booking "+bookingID)
	}
	return int(max.Int64), nil
}

func (s *gormStore) CreateSample(ctx context.Context, sample *model.BookingLabSample) error {
	return translate(s.db.WithContext(ctx).Create(sample).Error, "sample of booking "+sample.BookingID)
}

// SaveSample writes every column of an existing sample.
func (s *gormStore) SaveSample(ctx context.Context, sample *model.BookingLabSample) error {
	return translate(s.db.WithContext(ctx).Save(sample).Error, "sample "+sample.ID)
}

// DeleteSample removes a sample only if it belongs to bookingID.
func (s *gormStore) DeleteSample(ctx context.Context, bookingID, id string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND booking_id = ?", id, bookingID).
		Delete(&model.BookingLabSample{})
	if res.Error != nil {
		return false, translate(res.Error, "sample "+id)
	}
	return res.RowsAffected > 0, nil
}
