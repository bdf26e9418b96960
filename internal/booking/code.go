package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

// Class is the product class a booking is numbered in.
type Class struct {
	USS    bool
	Prefix string
}

func (c Class) String() string {
	if c.USS {
		return "USS"
	}
	return "Cuplump"
}

// ClassOf classifies a rubber type. Anything mentioning USS, in any case,
// is numbered in the USS pool.
func ClassOf(rubberType string) Class {
	if strings.Contains(strings.ToUpper(rubberType), "USS") {
		return Class{USS: true, Prefix: "U"}
	}
	return Class{Prefix: "C"}
}

// GenCode renders YYMMDD followed by the sequence padded to two digits.
func GenCode(day time.Time, seq int) string {
	return dayCode(day) + fmt.Sprintf("%02d", seq)
}

func dayCode(day time.Time) string {
	return fmt.Sprintf("%02d%02d%02d", day.Year()%100, int(day.Month()), day.Day())
}

// ParseDay reads a calendar date (or timestamp) in loc and returns midnight
// UTC of that calendar day, which is how booking dates are stored.
func ParseDay(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}

	var t time.Time
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		t = ts.In(loc)
	} else {
		cfg := &now.Config{WeekStartDay: time.Monday, TimeLocation: loc, TimeFormats: now.TimeFormats}
		t, err = cfg.Parse(raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q", raw)
		}
	}
	return DayOf(t), nil
}

// DayOf truncates t to its calendar day and re-anchors it at UTC midnight.
func DayOf(t time.Time) time.Time {
	start := now.With(t).BeginningOfDay()
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
}
