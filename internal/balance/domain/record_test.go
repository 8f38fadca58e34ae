package balance

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestDerivedMetrics(t *testing.T) {
	record := &BalanceRecord{
		Timestamp:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Granularity: GranularityDay,
		Generation: []BalanceItem{
			{Category: "wind", ValueMW: 100, Unit: "MW"},
			{Category: "nuclear", ValueMW: 50, Unit: "MW"},
		},
		Demand: []BalanceItem{
			{Category: "demand", ValueMW: 120, Unit: "MW"},
		},
	}

	if got := record.TotalGeneration(); got != 150 {
		t.Fatalf("total generation: expected 150, got %v", got)
	}
	if got := record.TotalDemand(); got != 120 {
		t.Fatalf("total demand: expected 120, got %v", got)
	}
	if got := record.Balance(); got != 30 {
		t.Fatalf("balance: expected 30, got %v", got)
	}
	want := 100.0 / 150.0 * 100
	if got := record.RenewableShare(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("renewable share: expected %v, got %v", want, got)
	}
}

func TestDerivedMetricsNonFiniteInputs(t *testing.T) {
	record := &BalanceRecord{
		Generation: []BalanceItem{
			{Category: "wind", ValueMW: math.NaN()},
			{Category: "solar-pv", ValueMW: math.Inf(1)},
		},
		Demand: []BalanceItem{
			{Category: "demand", ValueMW: math.Inf(-1)},
		},
	}

	if got := record.TotalGeneration(); got != 0 {
		t.Fatalf("total generation: expected 0, got %v", got)
	}
	if got := record.TotalDemand(); got != 0 {
		t.Fatalf("total demand: expected 0, got %v", got)
	}
	if got := record.Balance(); got != 0 {
		t.Fatalf("balance: expected 0, got %v", got)
	}
	if got := record.RenewableShare(); got != 0 {
		t.Fatalf("renewable share: expected 0, got %v", got)
	}
}

func TestRenewableShareBounds(t *testing.T) {
	cases := []struct {
		name       string
		generation []BalanceItem
	}{
		{name: "empty", generation: nil},
		{name: "zero total", generation: []BalanceItem{{Category: "wind", ValueMW: 0}}},
		{name: "negative renewable", generation: []BalanceItem{
			{Category: "wind", ValueMW: -50},
			{Category: "nuclear", ValueMW: 100},
		}},
		{name: "negative conventional", generation: []BalanceItem{
			{Category: "wind", ValueMW: 100},
			{Category: "nuclear", ValueMW: -50},
		}},
		{name: "all renewable", generation: []BalanceItem{
			{Category: "hydro", ValueMW: 10},
			{Category: "hydro-wind", ValueMW: 5},
		}},
	}

	for _, tc := range cases {
		record := &BalanceRecord{Generation: tc.generation}
		share := record.RenewableShare()
		if share < 0 || share > 100 {
			t.Fatalf("%s: renewable share out of bounds: %v", tc.name, share)
		}
		if record.TotalGeneration() == 0 && share != 0 {
			t.Fatalf("%s: expected 0 share on zero generation, got %v", tc.name, share)
		}
	}
}

func TestRenewableShareAllRenewable(t *testing.T) {
	record := &BalanceRecord{
		Generation: []BalanceItem{{Category: "wind", ValueMW: 100}},
	}
	if got := record.RenewableShare(); got != 100 {
		t.Fatalf("expected 100, got %v", got)
	}
}

func TestValidate(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := (&BalanceRecord{Timestamp: ts, Granularity: GranularityHour}).Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}
	if err := (&BalanceRecord{Granularity: GranularityHour}).Validate(); err != ErrInvalidTimestamp {
		t.Fatalf("expected ErrInvalidTimestamp, got %v", err)
	}
	if err := (&BalanceRecord{Timestamp: ts, Granularity: "week"}).Validate(); err != ErrInvalidGranularity {
		t.Fatalf("expected ErrInvalidGranularity, got %v", err)
	}
	var nilRecord *BalanceRecord
	if err := nilRecord.Validate(); err != ErrNilRecord {
		t.Fatalf("expected ErrNilRecord, got %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	cause := ErrRecordNotFound
	err := WrapError(KindPersistence, "save failed", cause)

	if KindOf(err) != KindPersistence {
		t.Fatalf("expected persistence kind, got %q", KindOf(err))
	}
	if !IsKind(err, KindPersistence) {
		t.Fatalf("IsKind should match the wrapped kind")
	}
	if IsKind(err, KindFetch) {
		t.Fatalf("IsKind should not match a different kind")
	}
	if KindOf(ErrRecordNotFound) != "" {
		t.Fatalf("foreign errors should have no kind")
	}

	if got := err.Unwrap(); got != cause {
		t.Fatalf("expected unwrapped cause, got %v", got)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is should see through the wrap")
	}
}
