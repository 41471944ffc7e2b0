// Package schedule checks maintenance check-in dates against the planned
// service calendar.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/liftcare/field-bot/internal/apperr"
	"github.com/liftcare/field-bot/internal/gazetteer"
	"github.com/liftcare/field-bot/internal/models"
)

// ToleranceDays is how far a check-in may drift from a planned date.
const ToleranceDays = 4

type Reason int

const (
	ReasonNone Reason = iota
	ReasonNoSchedule
	ReasonNoDates
	ReasonOutOfWindow
)

func (r Reason) String() string {
	switch r {
	case ReasonNoSchedule:
		return "no schedule for this building"
	case ReasonNoDates:
		return "no dates on record"
	case ReasonOutOfWindow:
		return "date outside schedule window"
	default:
		return "ok"
	}
}

// MismatchError is returned when a check-in date is not accepted.
type MismatchError struct {
	Reason Reason
}

func (e *MismatchError) Error() string {
	return "schedule mismatch: " + e.Reason.String()
}

func (e *MismatchError) Unwrap() error {
	return apperr.New(apperr.KindScheduleMismatch, e.Reason.String())
}

// ReasonOf extracts the mismatch reason from err, or ReasonNone.
func ReasonOf(err error) Reason {
	var m *MismatchError
	if errors.As(err, &m) {
		return m.Reason
	}
	return ReasonNone
}

// Book is the in-memory schedule, keyed by the address text as authored.
type Book struct {
	mu      sync.RWMutex
	entries map[string][]time.Time
}

func NewBook(entries []models.ScheduleEntry) *Book {
	b := &Book{}
	b.Replace(entries)
	return b
}

// Replace swaps the whole schedule.
func (b *Book) Replace(entries []models.ScheduleEntry) {
	next := make(map[string][]time.Time)
	for _, e := range entries {
		dates := next[e.Key]
		if !e.Date.IsZero() {
			dates = append(dates, e.Date)
		}
		next[e.Key] = dates
	}
	b.mu.Lock()
	b.entries = next
	b.mu.Unlock()
}

// Keys returns the schedule keys matching "<street> <building>" after
// normalization, in sorted order.
func (b *Book) Keys(street, building string) []string {
	prefix := gazetteer.Normalize(fmt.Sprintf("%s %s", street, building))
	if prefix == "" {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	var keys []string
	for key := range b.entries {
		if strings.HasPrefix(gazetteer.Normalize(key), prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Check accepts date when it lies within ToleranceDays of any planned date
// filed under a matching key.
func (b *Book) Check(street, building string, date time.Time) error {
	keys := b.Keys(street, building)
	if len(keys) == 0 {
		return &MismatchError{Reason: ReasonNoSchedule}
	}
	b.mu.RLock()
	var planned []time.Time
	for _, key := range keys {
		planned = append(planned, b.entries[key]...)
	}
	b.mu.RUnlock()

	if len(planned) == 0 {
		return &MismatchError{Reason: ReasonNoDates}
	}
	for _, p := range planned {
		if abs(daysBetween(date, p)) <= ToleranceDays {
			return nil
		}
	}
	return &MismatchError{Reason: ReasonOutOfWindow}
}

// daysBetween counts calendar days from b to a, ignoring clock and zone.
func daysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(da.Sub(db).Hours() / 24)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
