package application

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule decides when a recurring fetch is due. Expressions take the form
// "hourly@MM", "daily@HH:MM", "monthly@DD HH:MM" or "yearly@MM-DD HH:MM";
// the loop evaluates Due once per minute, so a schedule fires at most once
// per matching minute.
type Schedule struct {
	expr   string
	minute int
	hour   int
	day    int
	month  time.Month
	kind   scheduleKind
}

type scheduleKind int

const (
	scheduleHourly scheduleKind = iota
	scheduleDaily
	scheduleMonthly
	scheduleYearly
)

// ParseSchedule parses a schedule expression.
func ParseSchedule(expr string) (Schedule, error) {
	prefix, rest, found := strings.Cut(expr, "@")
	if !found {
		return Schedule{}, fmt.Errorf("schedule: missing @ in %q", expr)
	}
	schedule := Schedule{expr: expr}

	switch prefix {
	case "hourly":
		minute, err := strconv.Atoi(rest)
		if err != nil || minute < 0 || minute > 59 {
			return Schedule{}, fmt.Errorf("schedule: bad minute in %q", expr)
		}
		schedule.kind = scheduleHourly
		schedule.minute = minute
	case "daily":
		ts, err := time.Parse("15:04", rest)
		if err != nil {
			return Schedule{}, fmt.Errorf("schedule: bad time in %q: %w", expr, err)
		}
		schedule.kind = scheduleDaily
		schedule.hour, schedule.minute = ts.Hour(), ts.Minute()
	case "monthly":
		ts, err := time.Parse("02 15:04", rest)
		if err != nil {
			return Schedule{}, fmt.Errorf("schedule: bad day/time in %q: %w", expr, err)
		}
		schedule.kind = scheduleMonthly
		schedule.day, schedule.hour, schedule.minute = ts.Day(), ts.Hour(), ts.Minute()
	case "yearly":
		ts, err := time.Parse("01-02 15:04", rest)
		if err != nil {
			return Schedule{}, fmt.Errorf("schedule: bad date/time in %q: %w", expr, err)
		}
		schedule.kind = scheduleYearly
		schedule.month, schedule.day = ts.Month(), ts.Day()
		schedule.hour, schedule.minute = ts.Hour(), ts.Minute()
	default:
		return Schedule{}, fmt.Errorf("schedule: unknown prefix in %q", expr)
	}
	return schedule, nil
}

// Due reports whether the schedule fires at the given instant.
func (s Schedule) Due(now time.Time) bool {
	if now.Minute() != s.minute {
		return false
	}
	switch s.kind {
	case scheduleHourly:
		return true
	case scheduleDaily:
		return now.Hour() == s.hour
	case scheduleMonthly:
		return now.Day() == s.day && now.Hour() == s.hour
	case scheduleYearly:
		return now.Month() == s.month && now.Day() == s.day && now.Hour() == s.hour
	default:
		return false
	}
}

// String returns the original expression.
func (s Schedule) String() string { return s.expr }
