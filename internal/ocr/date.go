package ocr

import (
	"regexp"
	"strconv"
	"time"
)

var dateRe = regexp.MustCompile(`\b(\d{1,2})[.\-/](\d{1,2})[.\-/](\d{2,4})\b`)

// ExtractDate returns the first valid dd.mm.yy(yy) date found in text.
// Two-digit years are read as 20yy. Impossible dates such as 31.02 are
// skipped in favour of the next candidate.
func ExtractDate(text string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	for _, m := range dateRe.FindAllStringSubmatch(text, -1) {
		d, _ := strconv.Atoi(m[1])
		mon, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		if y < 100 {
			y += 2000
		}
		if mon < 1 || mon > 12 || d < 1 {
			continue
		}
		t := time.Date(y, time.Month(mon), d, 0, 0, 0, 0, loc)
		if t.Day() != d || int(t.Month()) != mon {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}
