package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gridbalance/internal/balance/application/events"
	balance "gridbalance/internal/balance/domain"
	"gridbalance/internal/observability/metrics"
	"gridbalance/internal/reeadapter"
)

// IngestStatus is the outcome class of one ingest run.
type IngestStatus string

const (
	StatusSuccess IngestStatus = "success"
	StatusSkipped IngestStatus = "skipped"
)

const rangeDateLayout = "2006-01-02"

// DefaultMaxRetries bounds fetch attempts when the caller passes none.
const DefaultMaxRetries = 3

// FetchClient retrieves a raw balance payload for a date range.
type FetchClient interface {
	FetchBalance(ctx context.Context, start, end time.Time, trunc string) (*reeadapter.BalanceResponse, error)
}

// EventPublisher publishes ingest lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// IngestParams describe one ingest run.
type IngestParams struct {
	Start       time.Time
	End         time.Time
	Granularity balance.Granularity
	ForceUpdate bool
	MaxRetries  int
}

// IngestResult reports the outcome of one ingest run.
type IngestResult struct {
	Status      IngestStatus        `json:"status"`
	SavedCount  int                 `json:"saved_count"`
	Granularity balance.Granularity `json:"granularity"`
	Start       time.Time           `json:"start"`
	End         time.Time           `json:"end"`
}

// IngestService orchestrates one ingestion attempt: completeness check,
// fetch with bounded retries, normalization and idempotent persistence.
type IngestService struct {
	fetcher FetchClient
	repo    balance.RecordRepository
	bus     EventPublisher
	logger  *log.Logger

	backoff BackoffFunc
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

// IngestOption configures the service.
type IngestOption func(*IngestService)

// WithBackoff overrides the retry backoff curve.
func WithBackoff(backoff BackoffFunc) IngestOption {
	return func(s *IngestService) {
		if backoff != nil {
			s.backoff = backoff
		}
	}
}

// WithSleep overrides the retry sleep, for tests on a fake clock.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) IngestOption {
	return func(s *IngestService) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) IngestOption {
	return func(s *IngestService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewIngestService constructs the orchestrator.
func NewIngestService(fetcher FetchClient, repo balance.RecordRepository, bus EventPublisher, logger *log.Logger, opts ...IngestOption) (*IngestService, error) {
	if fetcher == nil {
		return nil, errors.New("ingest service: nil fetch client")
	}
	if repo == nil {
		return nil, errors.New("ingest service: nil repository")
	}
	service := &IngestService{
		fetcher: fetcher,
		repo:    repo,
		bus:     bus,
		logger:  logger,
		backoff: ExponentialBackoff(2 * time.Second),
		sleep:   sleepContext,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// ParseRange converts ISO date strings into an ingest window, failing with
// an InvalidRange kind on malformed input.
func ParseRange(start, end string) (time.Time, time.Time, error) {
	startTS, err := parseRangeDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, balance.WrapError(balance.KindInvalidRange, fmt.Sprintf("bad start date %q", start), err)
	}
	endTS, err := parseRangeDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, balance.WrapError(balance.KindInvalidRange, fmt.Sprintf("bad end date %q", end), err)
	}
	return startTS, endTS, nil
}

func parseRangeDate(value string) (time.Time, error) {
	for _, layout := range []string{rangeDateLayout, "2006-01-02T15:04", time.RFC3339} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}

// Ingest runs one ingestion attempt and reports its outcome. InvalidRange,
// ResponseShape and Normalization failures are not retried; fetch failures
// are retried internally with exponential backoff up to MaxRetries;
// persistence failures surface without internal retry.
func (s *IngestService) Ingest(ctx context.Context, params IngestParams) (IngestResult, error) {
	started := s.now()
	result, err := s.ingest(ctx, params)
	duration := s.now().Sub(started)

	if err != nil {
		metrics.ObserveIngestRun(string(params.Granularity), "error", duration)
		s.publish(ctx, events.IngestFailed{
			Granularity: string(params.Granularity),
			Kind:        string(balance.KindOf(err)),
			Message:     err.Error(),
			Start:       params.Start,
			End:         params.End,
			OccurredAt:  s.now(),
		})
		return result, err
	}

	metrics.ObserveIngestRun(string(params.Granularity), string(result.Status), duration)
	metrics.AddRecordsSaved(string(params.Granularity), result.SavedCount)
	s.publish(ctx, events.IngestCompleted{
		Granularity: string(params.Granularity),
		Status:      string(result.Status),
		SavedCount:  result.SavedCount,
		Start:       params.Start,
		End:         params.End,
		OccurredAt:  s.now(),
	})
	return result, nil
}

func (s *IngestService) ingest(ctx context.Context, params IngestParams) (IngestResult, error) {
	result := IngestResult{
		Granularity: params.Granularity,
		Start:       params.Start,
		End:         params.End,
	}

	if !params.Granularity.IsValid() {
		return result, balance.NewError(balance.KindUnknownGranularity, fmt.Sprintf("granularity %q", params.Granularity))
	}
	if params.Start.IsZero() || params.End.IsZero() {
		return result, balance.NewError(balance.KindInvalidRange, "missing start or end date")
	}
	if params.Start.After(params.End) {
		return result, balance.NewError(balance.KindInvalidRange, "start date after end date")
	}

	if !params.ForceUpdate && s.rangeComplete(ctx, params) {
		result.Status = StatusSkipped
		return result, nil
	}

	payload, err := s.fetchWithRetry(ctx, params)
	if err != nil {
		return result, err
	}
	if payload == nil || payload.Data == nil || payload.Included == nil {
		return result, balance.NewError(balance.KindResponseShape, "payload missing data or included sections")
	}

	records, err := NormalizeBalance(payload, params.Granularity)
	if err != nil {
		return result, err
	}

	saved, err := s.persist(ctx, records, params.ForceUpdate)
	if err != nil {
		return result, err
	}

	result.Status = StatusSuccess
	result.SavedCount = saved
	return result, nil
}

// rangeComplete is the idempotency short-circuit: true when the store
// already holds at least the expected record count for the window. A failed
// count degrades to "assume incomplete" so a store hiccup never blocks a
// fetch.
func (s *IngestService) rangeComplete(ctx context.Context, params IngestParams) bool {
	expected := params.Granularity.ExpectedRecords(params.Start, params.End)
	if expected == 0 {
		return false
	}
	present, err := s.repo.CountByRange(ctx, params.Start, params.End, params.Granularity)
	if err != nil {
		s.logf("ingest %s: completeness check failed, proceeding to fetch: %v", params.Granularity, err)
		return false
	}
	return present >= expected
}

func (s *IngestService) fetchWithRetry(ctx context.Context, params IngestParams) (*reeadapter.BalanceResponse, error) {
	maxRetries := params.MaxRetries
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	policy := RetryPolicy{MaxAttempts: maxRetries, Backoff: s.backoff, Sleep: s.sleep}

	var payload *reeadapter.BalanceResponse
	err := policy.Do(ctx, func(ctx context.Context) error {
		fetched, fetchErr := s.fetcher.FetchBalance(ctx, params.Start, params.End, string(params.Granularity))
		if fetchErr != nil {
			metrics.IncFetchAttempt(string(params.Granularity), "error")
			s.logf("ingest %s: fetch attempt failed: %v", params.Granularity, fetchErr)
			return fetchErr
		}
		metrics.IncFetchAttempt(string(params.Granularity), "success")
		payload = fetched
		return nil
	})
	if err != nil {
		return nil, balance.WrapError(balance.KindFetch, fmt.Sprintf("fetch failed after %d attempts", maxRetries), err)
	}
	return payload, nil
}

func (s *IngestService) persist(ctx context.Context, records []*balance.BalanceRecord, forceUpdate bool) (int, error) {
	toSave := records
	if !forceUpdate {
		toSave = make([]*balance.BalanceRecord, 0, len(records))
		for _, record := range records {
			exists, err := s.repo.Exists(ctx, record.Timestamp, record.Granularity)
			if err != nil {
				return 0, balance.WrapError(balance.KindPersistence, "existence check failed", err)
			}
			if !exists {
				toSave = append(toSave, record)
			}
		}
	}
	if len(toSave) == 0 {
		return 0, nil
	}
	saved, err := s.repo.SaveMany(ctx, toSave)
	if err != nil {
		return 0, balance.WrapError(balance.KindPersistence, "bulk save failed", err)
	}
	return len(saved), nil
}

func (s *IngestService) publish(ctx context.Context, event any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logf("ingest event publish failed: %v", err)
	}
}

func (s *IngestService) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
