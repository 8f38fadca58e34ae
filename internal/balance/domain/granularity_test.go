package balance

import (
	"testing"
	"time"
)

func TestParseGranularity(t *testing.T) {
	for _, value := range []string{"hour", "day", "month", "year"} {
		g, ok := ParseGranularity(value)
		if !ok || string(g) != value {
			t.Fatalf("expected %q to parse, got %q ok=%v", value, g, ok)
		}
	}
	if _, ok := ParseGranularity("week"); ok {
		t.Fatalf("week should not parse")
	}
	if _, ok := ParseGranularity(""); ok {
		t.Fatalf("empty should not parse")
	}
}

func TestLookbackWindows(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		granularity Granularity
		want        time.Time
	}{
		{GranularityHour, now.Add(-24 * time.Hour)},
		{GranularityDay, now.AddDate(0, 0, -7)},
		{GranularityMonth, now.AddDate(0, -3, 0)},
		{GranularityYear, now.AddDate(-1, 0, 0)},
	}
	for _, tc := range cases {
		if got := tc.granularity.Lookback(now); !got.Equal(tc.want) {
			t.Fatalf("%s lookback: expected %v, got %v", tc.granularity, tc.want, got)
		}
	}
}

func TestExpectedRecords(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		granularity Granularity
		end         time.Time
		want        int
	}{
		{GranularityHour, start, 24},
		{GranularityHour, start.AddDate(0, 0, 1), 48},
		{GranularityDay, start.AddDate(0, 0, 6), 7},
		{GranularityMonth, start.AddDate(0, 0, 10), 1},
		{GranularityMonth, start.AddDate(0, 0, 89), 3},
		{GranularityYear, start.AddDate(0, 0, 100), 1},
		{GranularityYear, start.AddDate(0, 0, 729), 2},
	}
	for _, tc := range cases {
		if got := tc.granularity.ExpectedRecords(start, tc.end); got != tc.want {
			t.Fatalf("%s expected records to %v: want %d, got %d", tc.granularity, tc.end, tc.want, got)
		}
	}

	if got := GranularityDay.ExpectedRecords(start, start.AddDate(0, 0, -1)); got != 0 {
		t.Fatalf("inverted range: expected 0, got %d", got)
	}
}

func TestTimeKey(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)

	cases := []struct {
		granularity Granularity
		want        string
	}{
		{GranularityHour, "2024-03-05T14"},
		{GranularityDay, "2024-03-05"},
		{GranularityMonth, "2024-03"},
		{GranularityYear, "2024"},
	}
	for _, tc := range cases {
		if got := tc.granularity.TimeKey(ts); got != tc.want {
			t.Fatalf("%s time key: expected %q, got %q", tc.granularity, tc.want, got)
		}
	}
}
