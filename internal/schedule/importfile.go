package schedule

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/liftcare/field-bot/internal/models"
)

// ParseFile reads a schedule document of the form
//
//	"вул. Лазурна 32":
//	  - 2025-03-14
//	  - 2025-04-11
//
// into stored rows. Day values are kept as written; rows that do not form a
// calendar date surface later as a key with no dates.
func ParseFile(r io.Reader) ([]models.ScheduleRow, error) {
	var doc map[string][]string
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parse schedule: %w", err)
	}

	addresses := make([]string, 0, len(doc))
	for address := range doc {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	var rows []models.ScheduleRow
	for _, address := range addresses {
		for _, raw := range doc[address] {
			row, err := parseRow(address, raw)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func parseRow(address, raw string) (models.ScheduleRow, error) {
	parts := strings.Split(strings.TrimSpace(raw), "-")
	if len(parts) != 3 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return models.ScheduleRow{}, fmt.Errorf("schedule %q: date %q is not YYYY-MM-DD", address, raw)
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return models.ScheduleRow{}, fmt.Errorf("schedule %q: date %q: %w", address, raw, err)
	}
	return models.ScheduleRow{Address: address, Month: parts[0] + "-" + parts[1], Day: day}, nil
}

// Entries converts stored rows for NewBook.
func Entries(rows []models.ScheduleRow) []models.ScheduleEntry {
	entries := make([]models.ScheduleEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.Entry())
	}
	return entries
}
