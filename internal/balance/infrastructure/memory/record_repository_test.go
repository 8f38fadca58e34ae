package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	balance "gridbalance/internal/balance/domain"
)

func hourRecord(hour int, windMW float64) *balance.BalanceRecord {
	return &balance.BalanceRecord{
		Timestamp:   time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC),
		Granularity: balance.GranularityHour,
		Generation:  []balance.BalanceItem{{Category: "wind", ValueMW: windMW, Unit: "MW"}},
		Demand:      []balance.BalanceItem{{Category: "demand", ValueMW: 50, Unit: "MW"}},
		Interchange: []balance.BalanceItem{},
	}
}

func TestSaveAssignsIdentity(t *testing.T) {
	repo := NewRecordRepository()
	ctx := context.Background()

	saved, err := repo.Save(ctx, hourRecord(0, 100))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID == "" {
		t.Fatalf("expected id to be assigned")
	}
	if saved.CreatedAt.IsZero() || saved.UpdatedAt.IsZero() {
		t.Fatalf("expected lifecycle timestamps, got %+v", saved)
	}

	exists, err := repo.Exists(ctx, saved.Timestamp, balance.GranularityHour)
	if err != nil || !exists {
		t.Fatalf("expected record to exist: %v", err)
	}
}

func TestSaveUpsertsOnSameKey(t *testing.T) {
	repo := NewRecordRepository()
	ctx := context.Background()

	first, err := repo.Save(ctx, hourRecord(0, 100))
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	second, err := repo.Save(ctx, hourRecord(0, 200))
	if err != nil {
		t.Fatalf("second save: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("upsert must keep id: %s vs %s", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("upsert must keep created_at")
	}
	if second.TotalGeneration() != 200 {
		t.Fatalf("payload not replaced: %v", second.TotalGeneration())
	}

	count, err := repo.CountByRange(ctx, first.Timestamp, first.Timestamp, balance.GranularityHour)
	if err != nil || count != 1 {
		t.Fatalf("expected single row after upsert, got %d (%v)", count, err)
	}
}

func TestSaveRejectsInvalidRecord(t *testing.T) {
	repo := NewRecordRepository()
	ctx := context.Background()

	if _, err := repo.Save(ctx, &balance.BalanceRecord{Granularity: balance.GranularityHour}); !errors.Is(err, balance.ErrInvalidTimestamp) {
		t.Fatalf("expected invalid timestamp, got %v", err)
	}
	if _, err := repo.Save(ctx, &balance.BalanceRecord{Timestamp: time.Now(), Granularity: "fortnight"}); !errors.Is(err, balance.ErrInvalidGranularity) {
		t.Fatalf("expected invalid granularity, got %v", err)
	}
}

func TestSaveManyIsAtomicPerRecordSet(t *testing.T) {
	repo := NewRecordRepository()
	ctx := context.Background()

	records := []*balance.BalanceRecord{hourRecord(0, 100), hourRecord(1, 110), hourRecord(2, 120)}
	saved, err := repo.SaveMany(ctx, records)
	if err != nil {
		t.Fatalf("save many: %v", err)
	}
	if len(saved) != 3 {
		t.Fatalf("expected 3 saved, got %d", len(saved))
	}
}

func TestFindByRangeOrderingAndPaging(t *testing.T) {
	repo := NewRecordRepository()
	ctx := context.Background()

	for _, hour := range []int{3, 0, 2, 1} {
		if _, err := repo.Save(ctx, hourRecord(hour, 100)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)

	all, err := repo.FindByRange(ctx, start, end, balance.GranularityHour, balance.QueryOptions{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 records, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.Before(all[i-1].Timestamp) {
			t.Fatalf("records not sorted by timestamp")
		}
	}

	page, err := repo.FindByRange(ctx, start, end, balance.GranularityHour, balance.QueryOptions{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("find page: %v", err)
	}
	if len(page) != 2 || page[0].Timestamp.Hour() != 1 {
		t.Fatalf("paging wrong: %+v", page)
	}
}

func TestUpdateByID(t *testing.T) {
	repo := NewRecordRepository()
	ctx := context.Background()

	saved, err := repo.Save(ctx, hourRecord(0, 100))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	replacement := hourRecord(0, 300)
	updated, err := repo.Update(ctx, saved.ID, replacement)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != saved.ID || updated.TotalGeneration() != 300 {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	if _, err := repo.Update(ctx, "rec-missing", replacement); !errors.Is(err, balance.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteByRange(t *testing.T) {
	repo := NewRecordRepository()
	ctx := context.Background()

	for hour := 0; hour < 4; hour++ {
		if _, err := repo.Save(ctx, hourRecord(hour, 100)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	deleted, err := repo.DeleteByRange(ctx,
		time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC),
		balance.GranularityHour)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}

	count, err := repo.CountByRange(ctx,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC),
		balance.GranularityHour)
	if err != nil || count != 2 {
		t.Fatalf("expected 2 remaining, got %d (%v)", count, err)
	}
}
