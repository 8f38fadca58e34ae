package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	balance "gridbalance/internal/balance/domain"
	"gridbalance/internal/observability/metrics"
)

// SchedulerState is the lifecycle state of a granularity scheduler.
type SchedulerState string

const (
	StateStopped SchedulerState = "stopped"
	StateRunning SchedulerState = "running"
)

// IngestRunner runs one ingestion attempt.
type IngestRunner interface {
	Ingest(ctx context.Context, params IngestParams) (IngestResult, error)
}

// SchedulerStatus is an observability snapshot of one scheduler.
type SchedulerStatus struct {
	Granularity     balance.Granularity `json:"granularity"`
	State           SchedulerState      `json:"state"`
	ScheduleExpr    string              `json:"schedule"`
	FetchInProgress bool                `json:"fetch_in_progress"`
	RetryCount      int                 `json:"retry_count"`
	LastFetchTime   time.Time           `json:"last_fetch_time,omitempty"`
	LastError       string              `json:"last_error,omitempty"`
}

// TriggerResult is the structured outcome of a manual fetch trigger.
type TriggerResult struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Result  *IngestResult `json:"result,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// GranularityScheduler drives recurring ingestion for one granularity. At
// most one fetch runs at a time per scheduler; a tick or manual trigger that
// arrives while a fetch is in flight is dropped, not queued.
type GranularityScheduler struct {
	granularity  balance.Granularity
	schedule     Schedule
	runner       IngestRunner
	logger       *log.Logger
	maxRetries   int
	retryDelay   time.Duration
	retryOnError bool
	lookbackDays int
	backfill     bool

	tickInterval time.Duration
	now          func() time.Time

	mu              sync.Mutex
	state           SchedulerState
	fetchInProgress bool
	retryCount      int
	lastFetchTime   time.Time
	lastError       string
	retryTimer      *time.Timer
	cancel          context.CancelFunc
	done            chan struct{}
}

// SchedulerOption configures a scheduler.
type SchedulerOption func(*GranularityScheduler)

// WithTickInterval overrides the schedule evaluation interval, for tests.
func WithTickInterval(interval time.Duration) SchedulerOption {
	return func(s *GranularityScheduler) {
		if interval > 0 {
			s.tickInterval = interval
		}
	}
}

// WithSchedulerClock overrides the time source, for tests.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *GranularityScheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewGranularityScheduler constructs a scheduler for one granularity.
func NewGranularityScheduler(g balance.Granularity, schedule Schedule, runner IngestRunner, cfg ScheduleSettings, logger *log.Logger, opts ...SchedulerOption) (*GranularityScheduler, error) {
	if !g.IsValid() {
		return nil, balance.ErrInvalidGranularity
	}
	if runner == nil {
		return nil, errors.New("scheduler: nil ingest runner")
	}
	scheduler := &GranularityScheduler{
		granularity:  g,
		schedule:     schedule,
		runner:       runner,
		logger:       logger,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		retryOnError: cfg.RetryOnFailure,
		lookbackDays: cfg.LookbackDays,
		backfill:     cfg.Backfill,
		tickInterval: time.Minute,
		now:          func() time.Time { return time.Now().UTC() },
		state:        StateStopped,
	}
	for _, opt := range opts {
		opt(scheduler)
	}
	return scheduler, nil
}

// Granularity returns the scheduler's granularity.
func (s *GranularityScheduler) Granularity() balance.Granularity { return s.granularity }

// Start arms the recurring schedule, running the historical backfill first
// when configured. It is a no-op when already running.
func (s *GranularityScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.state = StateRunning
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	metrics.SetSchedulerRunning(string(s.granularity), true)

	go func() {
		defer close(done)
		if s.backfill {
			s.runBackfill(runCtx)
		}
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if s.schedule.Due(s.now()) {
					s.runScheduled(runCtx)
				}
			}
		}
	}()
}

// Stop halts the schedule and any pending deferred retry, idempotently.
func (s *GranularityScheduler) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	cancel := s.cancel
	done := s.done
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	metrics.SetSchedulerRunning(string(s.granularity), false)
}

// Status reports a snapshot of scheduler state.
func (s *GranularityScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStatus{
		Granularity:     s.granularity,
		State:           s.state,
		ScheduleExpr:    s.schedule.String(),
		FetchInProgress: s.fetchInProgress,
		RetryCount:      s.retryCount,
		LastFetchTime:   s.lastFetchTime,
		LastError:       s.lastError,
	}
}

// FetchNow bypasses the schedule but still honors the single-flight guard.
func (s *GranularityScheduler) FetchNow(ctx context.Context, params IngestParams) TriggerResult {
	params.Granularity = s.granularity
	if !s.tryBegin() {
		return TriggerResult{Success: false, Message: "fetch already in progress"}
	}
	result, err := s.runIngest(ctx, params)
	if err != nil {
		return TriggerResult{Success: false, Message: "ingest failed", Error: err.Error()}
	}
	return TriggerResult{Success: true, Message: "ingest finished", Result: &result}
}

// runScheduled executes one tick: short-horizon top-up window ending now.
func (s *GranularityScheduler) runScheduled(ctx context.Context) {
	if !s.tryBegin() {
		s.logf("scheduler %s: tick skipped, fetch in progress", s.granularity)
		return
	}
	now := s.now()
	params := IngestParams{
		Start:       s.granularity.Lookback(now),
		End:         now,
		Granularity: s.granularity,
		MaxRetries:  s.maxRetries,
	}
	if _, err := s.runIngest(ctx, params); err != nil {
		s.logf("scheduler %s: scheduled fetch failed: %v", s.granularity, err)
		s.maybeScheduleRetry(ctx)
	}
}

// runBackfill covers the configured lookback window once at startup. A
// failure is logged and does not abort the scheduler.
func (s *GranularityScheduler) runBackfill(ctx context.Context) {
	if s.lookbackDays <= 0 {
		return
	}
	if !s.tryBegin() {
		return
	}
	now := s.now()
	params := IngestParams{
		Start:       now.AddDate(0, 0, -s.lookbackDays),
		End:         now,
		Granularity: s.granularity,
		MaxRetries:  s.maxRetries,
	}
	if _, err := s.runIngest(ctx, params); err != nil {
		s.logf("scheduler %s: backfill failed: %v", s.granularity, err)
	}
}

// runIngest performs the guarded ingest call; the caller must have acquired
// the guard via tryBegin.
func (s *GranularityScheduler) runIngest(ctx context.Context, params IngestParams) (IngestResult, error) {
	defer s.end()

	result, err := s.runner.Ingest(ctx, params)

	s.mu.Lock()
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
		s.retryCount = 0
		s.lastFetchTime = s.now()
	}
	s.mu.Unlock()
	return result, err
}

// maybeScheduleRetry arms one deferred retry when retry-on-failure is
// enabled and the bound is not exhausted. The retry is a one-shot timer and
// competes for the same single-flight guard as regular ticks.
func (s *GranularityScheduler) maybeScheduleRetry(ctx context.Context) {
	s.mu.Lock()
	if !s.retryOnError || s.retryCount >= s.maxRetries || s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.retryCount++
	attempt := s.retryCount
	delay := s.retryDelay
	s.retryTimer = time.AfterFunc(delay, func() {
		if ctx.Err() != nil {
			return
		}
		s.mu.Lock()
		running := s.state == StateRunning
		s.mu.Unlock()
		if !running {
			return
		}
		s.logf("scheduler %s: deferred retry %d", s.granularity, attempt)
		s.runScheduled(ctx)
	})
	s.mu.Unlock()
}

func (s *GranularityScheduler) tryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchInProgress {
		return false
	}
	s.fetchInProgress = true
	return true
}

func (s *GranularityScheduler) end() {
	s.mu.Lock()
	s.fetchInProgress = false
	s.mu.Unlock()
}

func (s *GranularityScheduler) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
