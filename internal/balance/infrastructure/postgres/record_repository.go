package postgres

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	balance "gridbalance/internal/balance/domain"
)

const defaultRecordTable = "balance_records"

// RecordRepository is the Postgres persistence gateway for balance records.
// The table carries a UNIQUE (ts, granularity) constraint; saves are upserts
// against that key and derived totals are recomputed on every write.
type RecordRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*RecordRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *RecordRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewRecordRepository creates a repository using the default table name.
func NewRecordRepository(db *sql.DB, opts ...RepositoryOption) (*RecordRepository, error) {
	if db == nil {
		return nil, errors.New("record repo: nil db handle")
	}
	repo := &RecordRepository{
		db:    db,
		table: defaultRecordTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo, nil
}

// Exists reports whether a record is stored for the timestamp and granularity.
func (r *RecordRepository) Exists(ctx context.Context, ts time.Time, g balance.Granularity) (bool, error) {
	if ts.IsZero() {
		return false, balance.ErrInvalidTimestamp
	}
	if !g.IsValid() {
		return false, balance.ErrInvalidGranularity
	}

	query := fmt.Sprintf(`
SELECT EXISTS (
	SELECT 1 FROM %s WHERE ts = $1 AND granularity = $2
)`, r.table)

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, ts.UTC(), string(g)).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Save upserts one record keyed on (ts, granularity). On conflict the stored
// row keeps its id and created_at; payload columns and derived totals are
// replaced.
func (r *RecordRepository) Save(ctx context.Context, record *balance.BalanceRecord) (*balance.BalanceRecord, error) {
	return r.saveTx(ctx, r.db, record)
}

// SaveMany upserts a batch of records inside one transaction. Either every
// record lands or none does.
func (r *RecordRepository) SaveMany(ctx context.Context, records []*balance.BalanceRecord) ([]*balance.BalanceRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	saved := make([]*balance.BalanceRecord, 0, len(records))
	for _, record := range records {
		stored, err := r.saveTx(ctx, tx, record)
		if err != nil {
			return nil, err
		}
		saved = append(saved, stored)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return saved, nil
}

// Update replaces the payload of an existing record by id.
func (r *RecordRepository) Update(ctx context.Context, id string, record *balance.BalanceRecord) (*balance.BalanceRecord, error) {
	if id == "" {
		return nil, balance.ErrRecordNotFound
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	generation, demand, interchange, metadata, err := marshalPayload(record)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
UPDATE %s SET
	ts = $2,
	granularity = $3,
	generation = $4,
	demand = $5,
	interchange = $6,
	metadata = $7,
	total_generation_mw = $8,
	total_demand_mw = $9,
	balance_mw = $10,
	renewable_share = $11,
	updated_at = NOW()
WHERE id = $1
RETURNING id, created_at, updated_at`, r.table)

	stored := cloneRecord(record)
	err = r.db.QueryRowContext(ctx, query,
		id,
		record.Timestamp.UTC(),
		string(record.Granularity),
		generation,
		demand,
		interchange,
		metadata,
		record.TotalGeneration(),
		record.TotalDemand(),
		record.Balance(),
		record.RenewableShare(),
	).Scan(&stored.ID, &stored.CreatedAt, &stored.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, balance.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// FindByRange lists records inside [start, end] for one granularity, ordered
// by timestamp.
func (r *RecordRepository) FindByRange(ctx context.Context, start, end time.Time, g balance.Granularity, opts balance.QueryOptions) ([]*balance.BalanceRecord, error) {
	if !g.IsValid() {
		return nil, balance.ErrInvalidGranularity
	}

	query := fmt.Sprintf(`
SELECT
	id,
	ts,
	granularity,
	generation,
	demand,
	interchange,
	metadata,
	created_at,
	updated_at
FROM %s
WHERE ts >= $1
	AND ts <= $2
	AND granularity = $3
ORDER BY ts ASC`, r.table)

	args := []any{start.UTC(), end.UTC(), string(g)}
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, opts.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*balance.BalanceRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountByRange counts stored records inside [start, end] for one granularity.
func (r *RecordRepository) CountByRange(ctx context.Context, start, end time.Time, g balance.Granularity) (int, error) {
	if !g.IsValid() {
		return 0, balance.ErrInvalidGranularity
	}

	query := fmt.Sprintf(`
SELECT COUNT(*) FROM %s
WHERE ts >= $1
	AND ts <= $2
	AND granularity = $3`, r.table)

	var count int
	if err := r.db.QueryRowContext(ctx, query, start.UTC(), end.UTC(), string(g)).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteByRange removes records inside [start, end] for one granularity and
// reports how many rows went away.
func (r *RecordRepository) DeleteByRange(ctx context.Context, start, end time.Time, g balance.Granularity) (int, error) {
	if !g.IsValid() {
		return 0, balance.ErrInvalidGranularity
	}

	query := fmt.Sprintf(`
DELETE FROM %s
WHERE ts >= $1
	AND ts <= $2
	AND granularity = $3`, r.table)

	result, err := r.db.ExecContext(ctx, query, start.UTC(), end.UTC(), string(g))
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

type execQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *RecordRepository) saveTx(ctx context.Context, q execQuerier, record *balance.BalanceRecord) (*balance.BalanceRecord, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}

	generation, demand, interchange, metadata, err := marshalPayload(record)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	ts,
	granularity,
	generation,
	demand,
	interchange,
	metadata,
	total_generation_mw,
	total_demand_mw,
	balance_mw,
	renewable_share
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)
ON CONFLICT (ts, granularity)
DO UPDATE SET
	generation = EXCLUDED.generation,
	demand = EXCLUDED.demand,
	interchange = EXCLUDED.interchange,
	metadata = EXCLUDED.metadata,
	total_generation_mw = EXCLUDED.total_generation_mw,
	total_demand_mw = EXCLUDED.total_demand_mw,
	balance_mw = EXCLUDED.balance_mw,
	renewable_share = EXCLUDED.renewable_share,
	updated_at = NOW()
RETURNING id, created_at, updated_at`, r.table)

	stored := cloneRecord(record)
	err = q.QueryRowContext(ctx, query,
		newRecordID(),
		record.Timestamp.UTC(),
		string(record.Granularity),
		generation,
		demand,
		interchange,
		metadata,
		record.TotalGeneration(),
		record.TotalDemand(),
		record.Balance(),
		record.RenewableShare(),
	).Scan(&stored.ID, &stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func marshalPayload(record *balance.BalanceRecord) (generation, demand, interchange, metadata []byte, err error) {
	if generation, err = json.Marshal(record.Generation); err != nil {
		return nil, nil, nil, nil, err
	}
	if demand, err = json.Marshal(record.Demand); err != nil {
		return nil, nil, nil, nil, err
	}
	if interchange, err = json.Marshal(record.Interchange); err != nil {
		return nil, nil, nil, nil, err
	}
	if record.Metadata == nil {
		metadata = []byte("{}")
		return generation, demand, interchange, metadata, nil
	}
	if metadata, err = json.Marshal(record.Metadata); err != nil {
		return nil, nil, nil, nil, err
	}
	return generation, demand, interchange, metadata, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*balance.BalanceRecord, error) {
	var (
		record      balance.BalanceRecord
		granularity string
		generation  []byte
		demand      []byte
		interchange []byte
		metadata    []byte
	)

	if err := scanner.Scan(
		&record.ID,
		&record.Timestamp,
		&granularity,
		&generation,
		&demand,
		&interchange,
		&metadata,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}

	record.Granularity = balance.Granularity(granularity)
	if !record.Granularity.IsValid() {
		return nil, balance.ErrInvalidGranularity
	}
	record.Timestamp = record.Timestamp.UTC()

	if err := json.Unmarshal(generation, &record.Generation); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(demand, &record.Demand); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(interchange, &record.Interchange); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
			return nil, err
		}
	}
	return &record, nil
}

func cloneRecord(record *balance.BalanceRecord) *balance.BalanceRecord {
	clone := *record
	clone.Generation = append([]balance.BalanceItem(nil), record.Generation...)
	clone.Demand = append([]balance.BalanceItem(nil), record.Demand...)
	clone.Interchange = append([]balance.BalanceItem(nil), record.Interchange...)
	if record.Metadata != nil {
		clone.Metadata = make(map[string]string, len(record.Metadata))
		for k, v := range record.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

func newRecordID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("rec-%d", time.Now().UnixNano())
	}
	return "rec-" + hex.EncodeToString(buf)
}
