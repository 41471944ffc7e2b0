package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftcare/field-bot/internal/apperr"
	"github.com/liftcare/field-bot/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testBook() *Book {
	return NewBook([]models.ScheduleEntry{
		{Key: "вул. Лазурна 32", Date: day(2025, 3, 14)},
		{Key: "вул. Лазурна 32", Date: day(2025, 4, 11)},
		{Key: "Соборна 5", Date: time.Time{}},
	})
}

func TestCheckToleranceBoundary(t *testing.T) {
	b := testBook()

	assert.NoError(t, b.Check("Лазурна", "32", day(2025, 3, 10)), "4 days before")
	assert.NoError(t, b.Check("Лазурна", "32", day(2025, 3, 18)), "4 days after")
	assert.NoError(t, b.Check("Лазурна", "32", day(2025, 3, 14)), "same day")

	err := b.Check("Лазурна", "32", day(2025, 3, 9))
	assert.Equal(t, ReasonOutOfWindow, ReasonOf(err), "5 days before")
	err = b.Check("Лазурна", "32", day(2025, 3, 19))
	assert.Equal(t, ReasonOutOfWindow, ReasonOf(err), "5 days after")
	assert.True(t, apperr.Is(err, apperr.KindScheduleMismatch))
}

func TestCheckAnyPlannedDate(t *testing.T) {
	assert.NoError(t, testBook().Check("вулиця Лазурна", "32", day(2025, 4, 8)))
}

func TestCheckIgnoresClockTime(t *testing.T) {
	late := time.Date(2025, 3, 18, 23, 30, 0, 0, time.FixedZone("EET", 2*60*60))
	assert.NoError(t, testBook().Check("Лазурна", "32", late))
}

func TestCheckDistinctReasons(t *testing.T) {
	b := testBook()

	err := b.Check("Перемоги", "1", day(2025, 3, 14))
	assert.Equal(t, ReasonNoSchedule, ReasonOf(err))

	err = b.Check("Соборна", "5", day(2025, 3, 14))
	assert.Equal(t, ReasonNoDates, ReasonOf(err))

	assert.Equal(t, ReasonNone, ReasonOf(nil))
}

func TestKeysPrefixMatch(t *testing.T) {
	b := NewBook([]models.ScheduleEntry{
		{Key: "вул. Лазурна 32/1", Date: day(2025, 3, 14)},
		{Key: "Лазурна, 32 корп. 2", Date: day(2025, 3, 20)},
		{Key: "Лазурна 33", Date: day(2025, 3, 20)},
	})
	assert.Equal(t, []string{"Лазурна, 32 корп. 2", "вул. Лазурна 32/1"}, b.Keys("Лазурна", "32"))
}

func TestParseFile(t *testing.T) {
	src := `
"вул. Лазурна 32":
  - "2025-03-14"
  - "2025-02-31"
"Соборна 5":
  - "2025-04-01"
`
	rows, err := ParseFile(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []models.ScheduleRow{
		{Address: "Соборна 5", Month: "2025-04", Day: 1},
		{Address: "вул. Лазурна 32", Month: "2025-03", Day: 14},
		{Address: "вул. Лазурна 32", Month: "2025-02", Day: 31},
	}, rows)

	entries := Entries(rows)
	assert.True(t, entries[2].Date.IsZero(), "31 February is not a date")
	assert.Equal(t, day(2025, 3, 14), entries[1].Date)

	_, err = ParseFile(strings.NewReader(`"x": ["14.03.2025"]`))
	assert.Error(t, err)
}
