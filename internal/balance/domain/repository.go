package balance

import (
	"context"
	"time"
)

// QueryOptions tune range queries.
type QueryOptions struct {
	Limit  int
	Offset int
}

// RecordRepository is the persistence gateway for balance records. The
// implementation owns the (timestamp, granularity) uniqueness constraint and
// the id/createdAt/updatedAt lifecycle fields; derived metrics are
// recomputed on every write.
type RecordRepository interface {
	Exists(ctx context.Context, ts time.Time, g Granularity) (bool, error)
	Save(ctx context.Context, record *BalanceRecord) (*BalanceRecord, error)
	SaveMany(ctx context.Context, records []*BalanceRecord) ([]*BalanceRecord, error)
	Update(ctx context.Context, id string, record *BalanceRecord) (*BalanceRecord, error)
	FindByRange(ctx context.Context, start, end time.Time, g Granularity, opts QueryOptions) ([]*BalanceRecord, error)
	CountByRange(ctx context.Context, start, end time.Time, g Granularity) (int, error)
	DeleteByRange(ctx context.Context, start, end time.Time, g Granularity) (int, error)
}
