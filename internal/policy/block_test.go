package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftcare/field-bot/internal/models"
)

func kyiv(t *testing.T) *time.Location {
	t.Helper()
	return time.FixedZone("EET", 2*60*60)
}

func TestBlockDeadline(t *testing.T) {
	loc := kyiv(t)
	cases := []struct {
		name    string
		created time.Time
		want    time.Time
	}{
		{
			name:    "tuesday adds a day",
			created: time.Date(2025, 3, 11, 9, 15, 0, 0, loc),
			want:    time.Date(2025, 3, 12, 9, 15, 0, 0, loc),
		},
		{
			name:    "thursday evening adds a day",
			created: time.Date(2025, 3, 13, 22, 0, 0, 0, loc),
			want:    time.Date(2025, 3, 14, 22, 0, 0, 0, loc),
		},
		{
			name:    "friday moves to monday",
			created: time.Date(2025, 3, 14, 10, 0, 0, 0, loc),
			want:    time.Date(2025, 3, 17, 13, 25, 0, 0, loc),
		},
		{
			name:    "saturday moves to monday",
			created: time.Date(2025, 3, 15, 23, 59, 0, 0, loc),
			want:    time.Date(2025, 3, 17, 13, 25, 0, 0, loc),
		},
		{
			name:    "sunday moves to monday",
			created: time.Date(2025, 3, 16, 0, 5, 0, 0, loc),
			want:    time.Date(2025, 3, 17, 13, 25, 0, 0, loc),
		},
		{
			name:    "friday across month end",
			created: time.Date(2025, 10, 31, 12, 0, 0, 0, loc),
			want:    time.Date(2025, 11, 3, 13, 25, 0, 0, loc),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.want.Equal(BlockDeadline(tc.created)), "got %s", BlockDeadline(tc.created))
		})
	}
}

func TestCheckFridayWindow(t *testing.T) {
	loc := kyiv(t)
	created := time.Date(2025, 3, 14, 10, 0, 0, 0, loc)
	requests := []models.Request{
		{ID: 1, Address: "Лазурна, 32", Entrance: "3", Status: models.StatusError, CreatedAt: created},
	}

	d := Check(created.Add(time.Hour), requests, "Лазурна, 32", "3")
	assert.True(t, d.Blocked)
	assert.True(t, time.Date(2025, 3, 17, 13, 25, 0, 0, loc).Equal(d.Deadline))
	require.NotNil(t, d.Source)
	assert.Equal(t, int64(1), d.Source.ID)

	d = Check(time.Date(2025, 3, 17, 13, 26, 0, 0, loc), requests, "Лазурна, 32", "3")
	assert.False(t, d.Blocked)

	d = Check(time.Date(2025, 3, 17, 13, 25, 0, 0, loc), requests, "Лазурна, 32", "3")
	assert.False(t, d.Blocked, "deadline itself is not blocked")
}

func TestCheckIgnoresOtherRequests(t *testing.T) {
	loc := kyiv(t)
	created := time.Date(2025, 3, 11, 10, 0, 0, 0, loc)
	now := created.Add(time.Hour)
	requests := []models.Request{
		{Address: "Лазурна, 32", Entrance: "3", Status: models.StatusPending, CreatedAt: created},
		{Address: "Лазурна, 32", Entrance: "3", Status: models.StatusDone, CreatedAt: created},
		{Address: "Лазурна, 32", Entrance: "2", Status: models.StatusError, CreatedAt: created},
		{Address: "Лазурна, 30", Entrance: "3", Status: models.StatusError, CreatedAt: created},
	}
	assert.False(t, Check(now, requests, "Лазурна, 32", "3").Blocked)
	assert.False(t, Check(now, nil, "Лазурна, 32", "3").Blocked)
}

func TestCheckUsesFirstMatch(t *testing.T) {
	loc := kyiv(t)
	old := time.Date(2025, 3, 10, 8, 0, 0, 0, loc)    // Monday, expired by Wednesday
	recent := time.Date(2025, 3, 12, 8, 0, 0, 0, loc) // Wednesday, still active
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, loc)
	requests := []models.Request{
		{ID: 1, Address: "Лазурна, 32", Entrance: "3", Status: models.StatusError, CreatedAt: old},
		{ID: 2, Address: "Лазурна, 32", Entrance: "3", Status: models.StatusError, CreatedAt: recent},
	}

	d := Check(now, requests, "Лазурна, 32", "3")
	assert.False(t, d.Blocked)
	require.NotNil(t, d.Source)
	assert.Equal(t, int64(1), d.Source.ID)
}
