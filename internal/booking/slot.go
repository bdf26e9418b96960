package booking

import (
	"sort"
	"time"

	"plantops-backend/config"
)

// SaturdaySlot is the midday slot whose numbering is overridden on Saturdays.
const SaturdaySlot = "10:00-11:00"

// SlotConfig is the numbering start and optional capacity of one slot.
// A nil Limit means the slot is unbounded.
type SlotConfig struct {
	Start int  `json:"start"`
	Limit *int `json:"limit"`
}

func limit(n int) *int { return &n }

var (
	defaultSlots = map[string]SlotConfig{
		"08:00-09:00": {Start: 1, Limit: limit(4)},
		"09:00-10:00": {Start: 5, Limit: limit(4)},
		"10:00-11:00": {Start: 9},
		"11:00-12:00": {Start: 13, Limit: limit(4)},
		"13:00-14:00": {Start: 17},
	}
	saturdayOverride = SlotConfig{Start: 9}
	unknownSlot      = SlotConfig{Start: 1}
)

// SlotTable maps slot strings ("08:00-09:00") to their configuration.
type SlotTable struct {
	entries map[string]SlotConfig
	order   []string
}

// NewSlotTable builds a table from config entries, falling back to the plant
// defaults when none are given.
func NewSlotTable(entries []config.SlotEntry) *SlotTable {
	t := &SlotTable{entries: make(map[string]SlotConfig)}
	if len(entries) == 0 {
		for slot, cfg := range defaultSlots {
			t.entries[slot] = cfg
		}
	} else {
		for _, e := range entries {
			cfg := SlotConfig{Start: e.Start}
			if e.Limit != nil {
				cfg.Limit = limit(*e.Limit)
			}
			if cfg.Start <= 0 {
				cfg.Start = 1
			}
			t.entries[e.Slot] = cfg
		}
	}
	for slot := range t.entries {
		t.order = append(t.order, slot)
	}
	sort.Strings(t.order)
	return t
}

// Resolve returns the configuration for slot on day. The Saturday midday
// override wins over the table; unknown slots number from 1 without a limit.
func (t *SlotTable) Resolve(slot string, day time.Time) SlotConfig {
	if day.Weekday() == time.Saturday && slot == SaturdaySlot {
		return saturdayOverride
	}
	if cfg, ok := t.entries[slot]; ok {
		return cfg
	}
	return unknownSlot
}

// Slots lists the configured slots in chronological order.
func (t *SlotTable) Slots() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}
