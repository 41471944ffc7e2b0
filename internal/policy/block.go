// Package policy decides whether a new repair request for an address and
// entrance must be refused because an earlier one failed recently.
package policy

import (
	"time"

	"github.com/liftcare/field-bot/internal/models"
)

const (
	blockWindow  = 24 * time.Hour
	mondayHour   = 13
	mondayMinute = 25
)

// BlockDeadline returns the end of the block window for a request that was
// marked not working. Requests created Friday through Sunday stay blocked
// until Monday 13:25 in createdAt's location.
func BlockDeadline(createdAt time.Time) time.Time {
	deadline := createdAt.Add(blockWindow)
	// Days until Monday, counting Friday=3, Saturday=2, Sunday=1.
	var untilMonday int
	switch createdAt.Weekday() {
	case time.Friday:
		untilMonday = 3
	case time.Saturday:
		untilMonday = 2
	case time.Sunday:
		untilMonday = 1
	default:
		return deadline
	}
	monday := createdAt.AddDate(0, 0, untilMonday)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), mondayHour, mondayMinute, 0, 0, createdAt.Location())
}

// Decision is the outcome of Check.
type Decision struct {
	Blocked  bool
	Deadline time.Time
	// Source is the failed request that caused the block.
	Source *models.Request
}

// Check scans requests in order and evaluates the first failed request for
// the same address and entrance. Later matches are not consulted even when
// their deadline is further away.
func Check(now time.Time, requests []models.Request, address, entrance string) Decision {
	for i := range requests {
		r := requests[i]
		if r.Address != address || r.Entrance != entrance || r.Status != models.StatusError {
			continue
		}
		deadline := BlockDeadline(r.CreatedAt)
		return Decision{Blocked: now.Before(deadline), Deadline: deadline, Source: &r}
	}
	return Decision{}
}
