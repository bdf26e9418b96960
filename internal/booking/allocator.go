package booking

import (
	"fmt"
	"sort"
	"time"

	"plantops-backend/internal/apperr"
	"plantops-backend/internal/model"
)

// candidate is the queue number and code chosen from a day snapshot.
type candidate struct {
	QueueNo int
	Code    string
}

// request is the part of an allocation the numbering rules look at.
type request struct {
	Day           time.Time
	Slot          string
	Config        SlotConfig
	Class         Class
	SupplierID    string
	TruckRegister string
}

// nextQueueNo returns the first number at or above start not present in used.
func nextQueueNo(used []int, start int) int {
	sorted := append([]int(nil), used...)
	sort.Ints(sorted)
	n := start
	for _, u := range sorted {
		if u == n {
			n++
		} else if u > n {
			break
		}
	}
	return n
}

// plan runs the capacity and duplicate-truck checks against the live bookings
// of the day and picks a candidate number and code.
func plan(req request, day []model.Booking) (candidate, error) {
	var sameClass []model.Booking
	for _, b := range day {
		if b.IsDeleted() {
			continue
		}
		if ClassOf(b.RubberType).USS == req.Class.USS {
			sameClass = append(sameClass, b)
		}
	}

	inSlot := 0
	for _, b := range sameClass {
		if b.Slot == req.Slot {
			inSlot++
		}
	}
	if req.Config.Limit != nil && inSlot >= *req.Config.Limit {
		return candidate{}, apperr.CapacityExceeded("This time slot is full for %s", req.Class)
	}

	if req.TruckRegister != "" {
		for _, b := range day {
			if b.IsDeleted() || b.CheckinAt != nil {
				continue
			}
			if b.SupplierID == req.SupplierID && b.Slot == req.Slot &&
				b.TruckRegister != nil && *b.TruckRegister == req.TruckRegister {
				return candidate{}, apperr.DuplicateConstraint("This truck (%s) already has a booking for this slot.", req.TruckRegister)
			}
		}
	}

	// USS numbering is shared across the whole day; other classes number per slot.
	var used []int
	for _, b := range sameClass {
		if req.Class.USS || b.Slot == req.Slot {
			used = append(used, b.QueueNo)
		}
	}
	queueNo := nextQueueNo(used, req.Config.Start)

	codes := make(map[string]struct{}, len(day))
	for _, b := range day {
		codes[b.BookingCode] = struct{}{}
	}
	code := req.Class.Prefix + GenCode(req.Day, queueNo)
	for {
		if _, taken := codes[code]; !taken {
			break
		}
		queueNo++
		code = req.Class.Prefix + GenCode(req.Day, queueNo)
	}
	return candidate{QueueNo: queueNo, Code: code}, nil
}

// lockKey names the serialisation point for one (date, slot, class).
func lockKey(day time.Time, slot string, class Class) string {
	return fmt.Sprintf("booking:%s:%s:%s", day.Format("2006-01-02"), slot, class.Prefix)
}
