package catalog

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a referenced clip or chime does not exist.
var ErrNotFound = errors.New("catalog: not found")

// WeekdaySet is a bitmask over the seven weekdays.
// Bit n corresponds to time.Weekday(n) (Sunday = 0).
type WeekdaySet uint8

const AllDays WeekdaySet = 0x7f

func (s WeekdaySet) Has(d time.Weekday) bool { return s&(1<<uint(d)) != 0 }

func (s WeekdaySet) With(d time.Weekday) WeekdaySet { return s | (1 << uint(d)) }

func (s WeekdaySet) IsEmpty() bool { return s == 0 }

// Weekdays builds a set from explicit days.
func Weekdays(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

// String renders the set in stored form, e.g. "Mon,Wed,Fri".
func (s WeekdaySet) String() string {
	var parts []string
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			parts = append(parts, d.String()[:3])
		}
	}
	return strings.Join(parts, ",")
}

var dayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseDays parses a comma-separated weekday list ("Mon,Wed,Friday").
// Unknown names are ignored rather than rejected: the catalog is external
// user data and a typo in one day must not break the whole schedule row.
func ParseDays(raw string) WeekdaySet {
	var s WeekdaySet
	for _, p := range strings.Split(raw, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if d, ok := dayNames[p]; ok {
			s = s.With(d)
		}
	}
	return s
}

// Schedule is one user-defined bell entry.
//
// The core treats schedules as immutable value objects for the duration of a
// single matching pass; the catalog is re-read on every tick so edits made
// through the web layer take effect without a restart.
type Schedule struct {
	ID           int64
	Hour         int
	Minute       int
	Days         WeekdaySet
	Enabled      bool
	ClipID       int64
	ChimeID      int64 // 0 = no chime pair
	AnnounceTime bool
	Position     int
}

// Clip is a playable audio asset registered through the web layer.
type Clip struct {
	ID       int64
	Name     string
	Path     string
	Duration time.Duration // informational; 0 when unknown
}

// Chime is an opening/closing bell pair played around the main sequence.
type Chime struct {
	ID          int64
	Name        string
	OpeningPath string
	ClosingPath string
	Enabled     bool
}
