package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultDateLayouts are tried in order when a tenant declares no date format.
// Day-first layouts come before year-first ones that could be confused with them.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02-01-2006",
	"02-01-2006 15:04:05",
	"02.01.2006",
	"2006/01/02",
	"2/1/2006",
	"02/01/06",
}

var strftimeLayout = strings.NewReplacer(
	"%Y", "2006",
	"%y", "06",
	"%m", "01",
	"%d", "02",
	"%H", "15",
	"%M", "04",
	"%S", "05",
	"%b", "Jan",
	"%B", "January",
	"%p", "PM",
)

// DateLayout converts a tenant date format to a Go layout. Formats written
// with % directives are translated; anything else is taken as a Go layout.
func DateLayout(format string) string {
	if strings.Contains(format, "%") {
		return strftimeLayout.Replace(format)
	}
	return format
}

func layoutHasClock(layout string) bool {
	return strings.Contains(layout, "15") || strings.Contains(layout, "03")
}

// parseDate returns the parsed time and whether the value carried a time of day
func parseDate(value string, layouts []string, loc *time.Location) (time.Time, bool, error) {
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, value, loc)
		if err == nil {
			return t, layoutHasClock(layout), nil
		}
	}
	return time.Time{}, false, fmt.Errorf("cannot parse %q as a date", value)
}

// parseClock reads a time of day from a separate column: "14", "14:30" or "14:30:05"
func parseClock(value string) (hour, minute, second int, err error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) > 3 {
		return 0, 0, 0, fmt.Errorf("cannot parse %q as a time", value)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, convErr := strconv.Atoi(strings.TrimSpace(p))
		if convErr != nil {
			return 0, 0, 0, fmt.Errorf("cannot parse %q as a time", value)
		}
		nums[i] = n
	}
	if nums[0] < 0 || nums[0] > 23 || nums[1] < 0 || nums[1] > 59 || nums[2] < 0 || nums[2] > 59 {
		return 0, 0, 0, fmt.Errorf("time %q out of range", value)
	}
	return nums[0], nums[1], nums[2], nil
}
