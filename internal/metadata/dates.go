// file: internal/metadata/dates.go
// version: 1.0.0
// guid: 9d3f6b1a-8c4e-4f2d-a7b9-5e0c3d8f2a61

package metadata

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// publishDateParsers is the ordered fallback chain for Open Library's
// free-text publish dates: structured layouts first, then fuzzy parsing,
// then a bare 4-digit year. The first parser to succeed wins.
var publishDateParsers = []func(string) (time.Time, bool){
	parseStructuredDate,
	parseFuzzyDate,
	parseBareYear,
}

// parsePublishDate normalizes a free-text publish date to a calendar date.
// An unparseable date is not an error; the field is simply left unset.
func parsePublishDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, parse := range publishDateParsers {
		if t, ok := parse(value); ok {
			date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &date
		}
	}
	return nil
}

var structuredDateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"January 2006",
}

func parseStructuredDate(value string) (time.Time, bool) {
	for _, layout := range structuredDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseFuzzyDate(value string) (time.Time, bool) {
	t, err := dateparse.ParseAny(value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseBareYear interprets the whole string as a 4-digit year, producing
// January 1 of that year.
func parseBareYear(value string) (time.Time, bool) {
	if len(value) != 4 {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(value)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), true
}
