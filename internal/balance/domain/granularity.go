package balance

import "time"

// Granularity is the temporal resolution of a balance record.
// Values match the REE apidatos time_trunc parameter.
type Granularity string

const (
	GranularityHour  Granularity = "hour"
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

// Granularities lists all supported granularities in resolution order.
func Granularities() []Granularity {
	return []Granularity{GranularityHour, GranularityDay, GranularityMonth, GranularityYear}
}

// ParseGranularity validates and normalizes a granularity string.
func ParseGranularity(value string) (Granularity, bool) {
	switch Granularity(value) {
	case GranularityHour, GranularityDay, GranularityMonth, GranularityYear:
		return Granularity(value), true
	default:
		return "", false
	}
}

// IsValid checks if the granularity is one of the supported values.
func (g Granularity) IsValid() bool {
	_, ok := ParseGranularity(string(g))
	return ok
}

// Lookback returns the start of the short-horizon top-up window for a
// scheduled fetch ending at now.
func (g Granularity) Lookback(now time.Time) time.Time {
	switch g {
	case GranularityHour:
		return now.Add(-24 * time.Hour)
	case GranularityDay:
		return now.AddDate(0, 0, -7)
	case GranularityMonth:
		return now.AddDate(0, -3, 0)
	case GranularityYear:
		return now.AddDate(-1, 0, 0)
	default:
		return now
	}
}

// ExpectedRecords estimates how many records a complete store holds for the
// range. The estimate scales the day count by the granularity; it is a
// heuristic, not a calendar computation, and can drift near month and year
// boundaries.
func (g Granularity) ExpectedRecords(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	days := int(end.Sub(start).Hours()/24) + 1
	switch g {
	case GranularityHour:
		return days * 24
	case GranularityDay:
		return days
	case GranularityMonth:
		if days < 30 {
			return 1
		}
		return days / 30
	case GranularityYear:
		if days < 365 {
			return 1
		}
		return days / 365
	default:
		return 0
	}
}

// TimeKey returns the storage-friendly key for a record timestamp, used as
// part of the (timestamp, granularity) identity in key-value fakes.
func (g Granularity) TimeKey(ts time.Time) string {
	layout := "2006-01-02T15"
	switch g {
	case GranularityDay:
		layout = "2006-01-02"
	case GranularityMonth:
		layout = "2006-01"
	case GranularityYear:
		layout = "2006"
	}
	return ts.UTC().Format(layout)
}
