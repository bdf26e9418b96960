package booking

import (
	"context"

	"plantops-backend/internal/apperr"
	"plantops-backend/internal/model"
	"plantops-backend/internal/store"
)

// SlotStats summarises one slot of a day.
type SlotStats struct {
	Count     int             `json:"count"`
	CheckedIn int             `json:"checkedIn"`
	Bookings  []model.Booking `json:"bookings"`
}

// DayStats summarises the live bookings of one day.
type DayStats struct {
	Date      string               `json:"date"`
	Total     int                  `json:"total"`
	CheckedIn int                  `json:"checkedIn"`
	Pending   int                  `json:"pending"`
	Slots     map[string]SlotStats `json:"slots"`
}

// Stats counts the day's bookings overall and per configured slot.
func (s *Service) Stats(ctx context.Context, date string) (*DayStats, error) {
	day, err := ParseDay(date, s.loc)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	bookings, err := s.store.ListBookings(ctx, store.BookingFilter{Date: &day})
	if err != nil {
		return nil, err
	}

	stats := &DayStats{
		Date:  day.Format("2006-01-02"),
		Total: len(bookings),
		Slots: make(map[string]SlotStats),
	}
	for _, slot := range s.slots.Slots() {
		stats.Slots[slot] = SlotStats{Bookings: []model.Booking{}}
	}
	for _, b := range bookings {
		if b.CheckinAt != nil {
			stats.CheckedIn++
		}
		ss, ok := stats.Slots[b.Slot]
		if !ok {
			continue
		}
		ss.Count++
		if b.CheckinAt != nil {
			ss.CheckedIn++
		}
		ss.Bookings = append(ss.Bookings, b)
		stats.Slots[b.Slot] = ss
	}
	stats.Pending = stats.Total - stats.CheckedIn
	return stats, nil
}
