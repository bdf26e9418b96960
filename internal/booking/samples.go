package booking

import (
	"context"
	"errors"

	"plantops-backend/internal/apperr"
	"plantops-backend/internal/model"
	"plantops-backend/internal/store"
)

type sampleField func(s *model.BookingLabSample) **float64

var sampleFloatFields = map[string]sampleField{
	"beforePress":       func(s *model.BookingLabSample) **float64 { return &s.BeforePress },
	"basketWeight":      func(s *model.BookingLabSample) **float64 { return &s.BasketWeight },
	"cuplumpWeight":     func(s *model.BookingLabSample) **float64 { return &s.CuplumpWeight },
	"afterPress":        func(s *model.BookingLabSample) **float64 { return &s.AfterPress },
	"percentCp":         func(s *model.BookingLabSample) **float64 { return &s.PercentCp },
	"beforeBaking1":     func(s *model.BookingLabSample) **float64 { return &s.BeforeBaking1 },
	"afterDryerB1":      func(s *model.BookingLabSample) **float64 { return &s.AfterDryerB1 },
	"beforeLabDryerB1":  func(s *model.BookingLabSample) **float64 { return &s.BeforeLabDryerB1 },
	"afterLabDryerB1":   func(s *model.BookingLabSample) **float64 { return &s.AfterLabDryerB1 },
	"drcB1":             func(s *model.BookingLabSample) **float64 { return &s.DrcB1 },
	"moisturePercentB1": func(s *model.BookingLabSample) **float64 { return &s.MoisturePercentB1 },
	"drcDryB1":          func(s *model.BookingLabSample) **float64 { return &s.DrcDryB1 },
	"labDrcB1":          func(s *model.BookingLabSample) **float64 { return &s.LabDrcB1 },
	"recalDrcB1":        func(s *model.BookingLabSample) **float64 { return &s.RecalDrcB1 },
	"beforeBaking2":     func(s *model.BookingLabSample) **float64 { return &s.BeforeBaking2 },
	"afterDryerB2":      func(s *model.BookingLabSample) **float64 { return &s.AfterDryerB2 },
	"beforeLabDryerB2":  func(s *model.BookingLabSample) **float64 { return &s.BeforeLabDryerB2 },
	"afterLabDryerB2":   func(s *model.BookingLabSample) **float64 { return &s.AfterLabDryerB2 },
	"drcB2":             func(s *model.BookingLabSample) **float64 { return &s.DrcB2 },
	"moisturePercentB2": func(s *model.BookingLabSample) **float64 { return &s.MoisturePercentB2 },
	"drcDryB2":          func(s *model.BookingLabSample) **float64 { return &s.DrcDryB2 },
	"labDrcB2":          func(s *model.BookingLabSample) **float64 { return &s.LabDrcB2 },
	"recalDrcB2":        func(s *model.BookingLabSample) **float64 { return &s.RecalDrcB2 },
	"beforeBaking3":     func(s *model.BookingLabSample) **float64 { return &s.BeforeBaking3 },
	"afterDryerB3":      func(s *model.BookingLabSample) **float64 { return &s.AfterDryerB3 },
	"beforeLabDryerB3":  func(s *model.BookingLabSample) **float64 { return &s.BeforeLabDryerB3 },
	"afterLabDryerB3":   func(s *model.BookingLabSample) **float64 { return &s.AfterLabDryerB3 },
	"drcB3":             func(s *model.BookingLabSample) **float64 { return &s.DrcB3 },
	"moisturePercentB3": func(s *model.BookingLabSample) **float64 { return &s.MoisturePercentB3 },
	"drcDryB3":          func(s *model.BookingLabSample) **float64 { return &s.DrcDryB3 },
	"labDrcB3":          func(s *model.BookingLabSample) **float64 { return &s.LabDrcB3 },
	"recalDrcB3":        func(s *model.BookingLabSample) **float64 { return &s.RecalDrcB3 },
	"drc":               func(s *model.BookingLabSample) **float64 { return &s.Drc },
	"moistureFactor":    func(s *model.BookingLabSample) **float64 { return &s.MoistureFactor },
	"recalDrc":          func(s *model.BookingLabSample) **float64 { return &s.RecalDrc },
	"difference":        func(s *model.BookingLabSample) **float64 { return &s.Difference },
	"p0":                func(s *model.BookingLabSample) **float64 { return &s.P0 },
	"p30":               func(s *model.BookingLabSample) **float64 { return &s.P30 },
	"pri":               func(s *model.BookingLabSample) **float64 { return &s.Pri },
}

// applySample copies present keys of data onto sample.
func applySample(sample *model.BookingLabSample, data map[string]any) {
	for key, field := range sampleFloatFields {
		if v, ok := data[key]; ok {
			*field(sample) = parseFloat(v)
		}
	}
	if v, ok := data["storage"]; ok {
		sample.Storage = optionalString(v)
	}
	if v, ok := data["recordedBy"]; ok {
		sample.RecordedBy = optionalString(v)
	}
}

func optionalString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

// Samples lists a booking's lab samples, main channel first.
func (s *Service) Samples(ctx context.Context, bookingID string) ([]model.BookingLabSample, error) {
	if _, err := s.store.GetBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.store.ListSamples(ctx, bookingID)
}

// SaveSample updates the sample named by data["id"] or creates a new one, then
// refreshes the booking's lab averages.
func (s *Service) SaveSample(ctx context.Context, bookingID string, data map[string]any) (*model.BookingLabSample, error) {
	var out *model.BookingLabSample
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.GetBooking(ctx, bookingID); err != nil {
			return err
		}

		existing, err := sampleOf(ctx, tx, bookingID, data["id"])
		if err != nil {
			return err
		}
		if existing != nil {
			applySample(existing, data)
			if err := tx.SaveSample(ctx, existing); err != nil {
				return err
			}
			out = existing
		} else {
			sample := &model.BookingLabSample{BookingID: bookingID, IsTrailer: isTrue(data["isTrailer"])}
			if n := parseFloat(data["sampleNo"]); n != nil && *n > 0 {
				sample.SampleNo = int(*n)
			} else {
				max, err := tx.MaxSampleNo(ctx, bookingID, sample.IsTrailer)
				if err != nil {
					return err
				}
				sample.SampleNo = max + 1
			}
			applySample(sample, data)
			if err := tx.CreateSample(ctx, sample); err != nil {
				return err
			}
			out = sample
		}
		return recomputeLabStats(ctx, tx, bookingID)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// sampleOf returns the booking's sample named by rawID, or nil when rawID is
// empty, unknown or owned by another booking.
func sampleOf(ctx context.Context, tx store.Store, bookingID string, rawID any) (*model.BookingLabSample, error) {
	id, ok := stringValue(rawID)
	if !ok || id == "" {
		return nil, nil
	}
	existing, err := tx.GetSample(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if existing.BookingID != bookingID {
		return nil, nil
	}
	return existing, nil
}

// DeleteSample removes one sample of a booking and refreshes the averages.
func (s *Service) DeleteSample(ctx context.Context, bookingID, sampleID string) error {
	return s.store.Transaction(ctx, func(tx store.Store) error {
		deleted, err := tx.DeleteSample(ctx, bookingID, sampleID)
		if err != nil {
			return err
		}
		if !deleted {
			return apperr.NotFound("sample %s not found on booking %s", sampleID, bookingID)
		}
		return recomputeLabStats(ctx, tx, bookingID)
	})
}

// labAverage is the mean of positive main-channel percentCp values. ok is
// false when no sample qualifies.
func labAverage(samples []model.BookingLabSample) (avg float64, ok bool) {
	var sum float64
	var n int
	for _, sm := range samples {
		if sm.IsTrailer || sm.PercentCp == nil || *sm.PercentCp <= 0 {
			continue
		}
		sum += *sm.PercentCp
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func recomputeLabStats(ctx context.Context, tx store.Store, bookingID string) error {
	samples, err := tx.ListSamples(ctx, bookingID)
	if err != nil {
		return err
	}
	avg, ok := labAverage(samples)
	if !ok {
		return nil
	}
	return tx.UpdateBooking(ctx, bookingID, map[string]any{
		"drc_est": avg,
		"cp_avg":  avg,
	})
}
