package booking

import (
	"context"
	"fmt"
	"strings"

	"plantops-backend/internal/apperr"
	"plantops-backend/internal/auth"
	"plantops-backend/internal/model"
	"plantops-backend/internal/store"
)

// CheckInInput carries optional truck details captured at the gate.
type CheckInInput struct {
	TruckType     *string `json:"truckType"`
	TruckRegister *string `json:"truckRegister"`
	Note          *string `json:"note"`
}

// WeighInInput is the first scale reading. Weights accept numbers or numeric
// strings; anything else is stored as null.
type WeighInInput struct {
	WeightIn            any     `json:"weightIn"`
	TrailerWeightIn     any     `json:"trailerWeightIn"`
	RubberSource        *string `json:"rubberSource"`
	RubberType          *string `json:"rubberType"`
	TrailerRubberSource *string `json:"trailerRubberSource"`
	TrailerRubberType   *string `json:"trailerRubberType"`
}

// WeighOutInput is the final scale reading.
type WeighOutInput struct {
	WeightOut        any `json:"weightOut"`
	TrailerWeightOut any `json:"trailerWeightOut"`
}

// mutate loads a live booking inside a transaction, lets step reject the
// step and applies the returned column patch.
func (s *Service) mutate(ctx context.Context, id string, step func(b *model.Booking) (map[string]any, error)) (*model.Booking, error) {
	var out *model.Booking
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		b, err := tx.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if b.IsDeleted() {
			return apperr.InvalidStateTransition("booking %s has been cancelled", b.BookingCode)
		}
		fields, err := step(b)
		if err != nil {
			return err
		}
		if err := tx.UpdateBooking(ctx, id, fields); err != nil {
			return err
		}
		out, err = tx.GetBooking(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CheckIn records the truck's arrival. A booking can be checked in once.
func (s *Service) CheckIn(ctx context.Context, id string, in CheckInInput, actor auth.Actor) (*model.Booking, error) {
	b, err := s.mutate(ctx, id, func(b *model.Booking) (map[string]any, error) {
		if b.CheckinAt != nil {
			return nil, apperr.InvalidStateTransition("This booking has already been checked in.")
		}
		fields := map[string]any{
			"checkin_at":    s.now(),
			"checked_in_by": actor.Name(),
		}
		if in.TruckType != nil {
			fields["truck_type"] = *in.TruckType
		}
		if in.TruckRegister != nil {
			fields["truck_register"] = strings.TrimSpace(*in.TruckRegister)
		}
		if in.Note != nil {
			fields["note"] = *in.Note
		}
		return fields, nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, "CHECK_IN", b.ID, "Truck Checked In",
		fmt.Sprintf("Booking %s (%s) checked in by %s", b.BookingCode, b.SupplierName, actor.Name()),
		"/bookings?code="+b.BookingCode)
	return b, nil
}

// StartDrain stamps the start of draining. Repeating it restarts the step.
func (s *Service) StartDrain(ctx context.Context, id string, actor auth.Actor) (*model.Booking, error) {
	b, err := s.mutate(ctx, id, func(b *model.Booking) (map[string]any, error) {
		return map[string]any{
			"start_drain_at": s.now(),
			"start_drain_by": actor.Name(),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, "START_DRAIN", b.ID, "Draining Started",
		fmt.Sprintf("Booking %s (%s) started draining", b.BookingCode, b.SupplierName),
		"/bookings?code="+b.BookingCode)
	return b, nil
}

// StopDrain stamps the end of draining. It requires a prior StartDrain.
func (s *Service) StopDrain(ctx context.Context, id string, note *string, actor auth.Actor) (*model.Booking, error) {
	b, err := s.mutate(ctx, id, func(b *model.Booking) (map[string]any, error) {
		if b.StartDrainAt == nil {
			return nil, apperr.InvalidStateTransition("booking %s has not started draining", b.BookingCode)
		}
		fields := map[string]any{
			"stop_drain_at": s.now(),
			"stop_drain_by": actor.Name(),
		}
		if note != nil {
			fields["drain_note"] = *note
		}
		return fields, nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, "STOP_DRAIN", b.ID, "Draining Stopped",
		fmt.Sprintf("Booking %s (%s) finished draining", b.BookingCode, b.SupplierName),
		"/bookings?code="+b.BookingCode)
	return b, nil
}

// WeighIn records the incoming weights for the truck and its trailer.
func (s *Service) WeighIn(ctx context.Context, id string, in WeighInInput, actor auth.Actor) (*model.Booking, error) {
	b, err := s.mutate(ctx, id, func(b *model.Booking) (map[string]any, error) {
		fields := map[string]any{
			"weight_in":         parseFloat(in.WeightIn),
			"weight_in_by":      actor.Name(),
			"trailer_weight_in": parseFloat(in.TrailerWeightIn),
		}
		if in.RubberSource != nil {
			fields["rubber_source"] = *in.RubberSource
		}
		if in.RubberType != nil && strings.TrimSpace(*in.RubberType) != "" {
			fields["rubber_type"] = *in.RubberType
		}
		if in.TrailerRubberSource != nil {
			fields["trailer_rubber_source"] = *in.TrailerRubberSource
		}
		if in.TrailerRubberType != nil {
			fields["trailer_rubber_type"] = *in.TrailerRubberType
		}
		return fields, nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, "WEIGHT_IN", b.ID, "Weight In Recorded",
		fmt.Sprintf("Booking %s (%s) weighed in", b.BookingCode, b.SupplierName),
		"/bookings?code="+b.BookingCode)
	return b, nil
}

// WeighOut records the outgoing weight. It requires a prior WeighIn.
func (s *Service) WeighOut(ctx context.Context, id string, in WeighOutInput, actor auth.Actor) (*model.Booking, error) {
	b, err := s.mutate(ctx, id, func(b *model.Booking) (map[string]any, error) {
		if b.WeightInBy == nil {
			return nil, apperr.InvalidStateTransition("booking %s has not been weighed in", b.BookingCode)
		}
		fields := map[string]any{
			"weight_out":    parseFloat(in.WeightOut),
			"weight_out_by": actor.Name(),
		}
		if in.TrailerWeightOut != nil {
			fields["trailer_weight_out"] = parseFloat(in.TrailerWeightOut)
		}
		return fields, nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, "WEIGHT_OUT", b.ID, "Weight Out Recorded",
		fmt.Sprintf("Booking %s (%s) weighed out", b.BookingCode, b.SupplierName),
		"/bookings?code="+b.BookingCode)
	return b, nil
}

var floatColumns = map[string]string{
	"estimatedWeight":     "estimated_weight",
	"moisture":            "moisture",
	"drcEst":              "drc_est",
	"drcRequested":        "drc_requested",
	"drcActual":           "drc_actual",
	"cpAvg":               "cp_avg",
	"trailerMoisture":     "trailer_moisture",
	"trailerDrcEst":       "trailer_drc_est",
	"trailerDrcRequested": "trailer_drc_requested",
	"trailerDrcActual":    "trailer_drc_actual",
	"trailerCpAvg":        "trailer_cp_avg",
	"weightIn":            "weight_in",
	"weightOut":           "weight_out",
	"trailerWeightIn":     "trailer_weight_in",
	"trailerWeightOut":    "trailer_weight_out",
}

var requiredStringColumns = map[string]string{
	"supplierId":   "supplier_id",
	"supplierCode": "supplier_code",
	"supplierName": "supplier_name",
	"rubberType":   "rubber_type",
	"recorder":     "recorder",
}

var nullableStringColumns = map[string]string{
	"truckType":           "truck_type",
	"truckRegister":       "truck_register",
	"lotNo":               "lot_no",
	"trailerLotNo":        "trailer_lot_no",
	"grade":               "grade",
	"trailerGrade":        "trailer_grade",
	"rubberSource":        "rubber_source",
	"trailerRubberSource": "trailer_rubber_source",
	"trailerRubberType":   "trailer_rubber_type",
	"note":                "note",
	"drainNote":           "drain_note",
}

// Update patches a booking. Numeric keys follow the three-way rule of
// parseFloat/patchFloat. A "silent" key suppresses the notification.
func (s *Service) Update(ctx context.Context, id string, patch map[string]any, actor auth.Actor) (*model.Booking, error) {
	b, err := s.mutate(ctx, id, func(b *model.Booking) (map[string]any, error) {
		fields := make(map[string]any)
		for key, column := range floatColumns {
			patchFloat(fields, patch, key, column)
		}
		for key, column := range requiredStringColumns {
			patchString(fields, patch, key, column, false)
		}
		for key, column := range nullableStringColumns {
			patchString(fields, patch, key, column, true)
		}

		if status, ok := stringValue(patch["status"]); ok && status != "" {
			status = strings.ToUpper(strings.TrimSpace(status))
			if status == model.BookingCancelled {
				return nil, apperr.Validation("use cancel to set status %s", model.BookingCancelled)
			}
			fields["status"] = status
			if status == model.BookingApproved {
				fields["approved_by"] = actor.Name()
				fields["approved_at"] = s.now()
			}
		}
		return fields, nil
	})
	if err != nil {
		return nil, err
	}
	if !isTrue(patch["silent"]) {
		s.notify(ctx, "UPDATE", b.ID, "Booking Updated",
			fmt.Sprintf("Booking %s (%s) at %s has been updated.", b.BookingCode, b.SupplierName, b.Slot),
			"/bookings?code="+b.BookingCode)
	}
	return b, nil
}

// Remove cancels a booking: it is soft-deleted and its code is rewritten so
// the original code can be allocated again.
func (s *Service) Remove(ctx context.Context, id string, actor auth.Actor) (*model.Booking, error) {
	var original string
	b, err := s.mutate(ctx, id, func(b *model.Booking) (map[string]any, error) {
		original = b.BookingCode
		now := s.now()
		return map[string]any{
			"deleted_at":   now,
			"deleted_by":   actor.Name(),
			"status":       model.BookingCancelled,
			"booking_code": fmt.Sprintf("CANCELLED-%s-%d", b.BookingCode, now.UnixMilli()),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, "DELETE", b.ID, "Booking Cancelled",
		fmt.Sprintf("Booking %s (%s) at %s has been cancelled.", original, b.SupplierName, b.Slot),
		"/bookings/"+original)
	return b, nil
}

// Purge physically deletes a booking and its samples.
func (s *Service) Purge(ctx context.Context, id string) error {
	return s.store.PurgeBooking(ctx, id)
}
