package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	balance "gridbalance/internal/balance/domain"
)

// RecordRepository is an in-memory persistence gateway for demos and tests.
// It enforces the same (timestamp, granularity) uniqueness as the Postgres
// implementation via keyed upserts.
type RecordRepository struct {
	mu   sync.RWMutex
	data map[string]*balance.BalanceRecord
	now  func() time.Time
}

// NewRecordRepository constructs a repository.
func NewRecordRepository() *RecordRepository {
	return &RecordRepository{
		data: make(map[string]*balance.BalanceRecord),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func recordKey(ts time.Time, g balance.Granularity) string {
	return string(g) + "/" + g.TimeKey(ts)
}

func newRecordID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "rec-" + hex.EncodeToString(buf)
}

// Exists checks for a record at (timestamp, granularity).
func (r *RecordRepository) Exists(ctx context.Context, ts time.Time, g balance.Granularity) (bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.data[recordKey(ts, g)]
	return ok, nil
}

// Save upserts one record, assigning id and lifecycle timestamps.
func (r *RecordRepository) Save(ctx context.Context, record *balance.BalanceRecord) (*balance.BalanceRecord, error) {
	_ = ctx
	if err := record.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(record), nil
}

func (r *RecordRepository) saveLocked(record *balance.BalanceRecord) *balance.BalanceRecord {
	key := recordKey(record.Timestamp, record.Granularity)
	stored := cloneRecord(record)
	now := r.now()

	if existing, ok := r.data[key]; ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.ID = newRecordID()
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.data[key] = stored
	return cloneRecord(stored)
}

// SaveMany upserts records in order.
func (r *RecordRepository) SaveMany(ctx context.Context, records []*balance.BalanceRecord) ([]*balance.BalanceRecord, error) {
	_ = ctx
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make([]*balance.BalanceRecord, 0, len(records))
	for _, record := range records {
		saved = append(saved, r.saveLocked(record))
	}
	return saved, nil
}

// Update patches a record by id, keeping its identity fields.
func (r *RecordRepository) Update(ctx context.Context, id string, record *balance.BalanceRecord) (*balance.BalanceRecord, error) {
	_ = ctx
	if id == "" {
		return nil, balance.ErrRecordNotFound
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, existing := range r.data {
		if existing.ID != id {
			continue
		}
		updated := cloneRecord(record)
		updated.ID = existing.ID
		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = r.now()
		delete(r.data, key)
		r.data[recordKey(updated.Timestamp, updated.Granularity)] = updated
		return cloneRecord(updated), nil
	}
	return nil, balance.ErrRecordNotFound
}

// FindByRange returns records in [start, end] ordered by timestamp.
func (r *RecordRepository) FindByRange(ctx context.Context, start, end time.Time, g balance.Granularity, opts balance.QueryOptions) ([]*balance.BalanceRecord, error) {
	_ = ctx
	r.mu.RLock()
	matched := make([]*balance.BalanceRecord, 0)
	for _, record := range r.data {
		if record.Granularity != g {
			continue
		}
		if record.Timestamp.Before(start) || record.Timestamp.After(end) {
			continue
		}
		matched = append(matched, cloneRecord(record))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Timestamp.Before(matched[j].Timestamp) })

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

// CountByRange counts records in [start, end].
func (r *RecordRepository) CountByRange(ctx context.Context, start, end time.Time, g balance.Granularity) (int, error) {
	records, err := r.FindByRange(ctx, start, end, g, balance.QueryOptions{})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// DeleteByRange removes records in [start, end] and reports the count.
func (r *RecordRepository) DeleteByRange(ctx context.Context, start, end time.Time, g balance.Granularity) (int, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := 0
	for key, record := range r.data {
		if record.Granularity != g {
			continue
		}
		if record.Timestamp.Before(start) || record.Timestamp.After(end) {
			continue
		}
		delete(r.data, key)
		deleted++
	}
	return deleted, nil
}

func cloneRecord(record *balance.BalanceRecord) *balance.BalanceRecord {
	clone := *record
	clone.Generation = append([]balance.BalanceItem(nil), record.Generation...)
	clone.Demand = append([]balance.BalanceItem(nil), record.Demand...)
	clone.Interchange = append([]balance.BalanceItem(nil), record.Interchange...)
	if record.Metadata != nil {
		clone.Metadata = make(map[string]string, len(record.Metadata))
		for key, value := range record.Metadata {
			clone.Metadata[key] = value
		}
	}
	return &clone
}
