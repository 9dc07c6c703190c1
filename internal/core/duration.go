package core

import (
	"regexp"
	"strconv"
	"strings"
)

var durationPattern = regexp.MustCompile(`^(\d+)\s*(minggu|pekan|week|bulan|month)`)

const weeksPerMonth = 4

// ResolveDuration turns "3 minggu" or "2 bulan" into a week count. Anything
// after the unit is ignored, so "2 bulan lagi" is 8 weeks.
func ResolveDuration(text string) (int, error) {
	m := durationPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(text)))
	if m == nil {
		return 0, &FormatError{Text: text}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, &FormatError{Text: text}
	}
	if m[2] == "bulan" || m[2] == "month" {
		n *= weeksPerMonth
	}
	if n <= 0 {
		return 0, &ValidationError{Field: "duration", Message: "Durasi program minimal 1 minggu."}
	}
	return n, nil
}

type WeekWindow struct {
	Week     int
	StartDay int
	EndDay   int
}

func NewWeekWindow(week int) WeekWindow {
	return WeekWindow{Week: week, StartDay: (week-1)*7 + 1, EndDay: week * 7}
}

func (w WeekWindow) Heading() string {
	return "### Minggu Ke-" + strconv.Itoa(w.Week) + " (Hari " + strconv.Itoa(w.StartDay) + "-" + strconv.Itoa(w.EndDay) + ")"
}
