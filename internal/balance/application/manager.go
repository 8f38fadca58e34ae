package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	balance "gridbalance/internal/balance/domain"
)

// SchedulerManager owns one granularity scheduler per configured
// granularity and exposes aggregate lifecycle and trigger operations.
type SchedulerManager struct {
	mu          sync.Mutex
	schedulers  map[balance.Granularity]*GranularityScheduler
	order       []balance.Granularity
	enabled     bool
	initialized bool
	logger      *log.Logger
}

// NewSchedulerManager builds schedulers from config. Granularities without a
// schedule entry are not armed.
func NewSchedulerManager(cfg Config, runner IngestRunner, logger *log.Logger, opts ...SchedulerOption) (*SchedulerManager, error) {
	if runner == nil {
		return nil, errors.New("scheduler manager: nil ingest runner")
	}
	manager := &SchedulerManager{
		schedulers: make(map[balance.Granularity]*GranularityScheduler),
		enabled:    cfg.Enabled,
		logger:     logger,
	}
	for _, g := range balance.Granularities() {
		settings, ok := cfg.Schedules[g]
		if !ok {
			continue
		}
		schedule, err := ParseSchedule(settings.Expr)
		if err != nil {
			return nil, fmt.Errorf("scheduler manager: %s: %w", g, err)
		}
		scheduler, err := NewGranularityScheduler(g, schedule, runner, settings, logger, opts...)
		if err != nil {
			return nil, fmt.Errorf("scheduler manager: %s: %w", g, err)
		}
		manager.schedulers[g] = scheduler
		manager.order = append(manager.order, g)
	}
	return manager, nil
}

// Initialize starts all schedulers. It is a no-op when already initialized
// or when ingestion is globally disabled.
func (m *SchedulerManager) Initialize(ctx context.Context) {
	m.mu.Lock()
	if m.initialized || !m.enabled {
		if !m.enabled {
			m.logf("ingestion disabled, schedulers not started")
		}
		m.mu.Unlock()
		return
	}
	m.initialized = true
	m.mu.Unlock()

	for _, g := range m.order {
		m.schedulers[g].Start(ctx)
		m.logf("scheduler %s started", g)
	}
}

// Shutdown stops all schedulers, idempotently.
func (m *SchedulerManager) Shutdown() {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return
	}
	m.initialized = false
	m.mu.Unlock()

	for _, g := range m.order {
		m.schedulers[g].Stop()
		m.logf("scheduler %s stopped", g)
	}
}

// Status aggregates each scheduler's state for observability.
func (m *SchedulerManager) Status() []SchedulerStatus {
	statuses := make([]SchedulerStatus, 0, len(m.order))
	for _, g := range m.order {
		statuses = append(statuses, m.schedulers[g].Status())
	}
	return statuses
}

// FetchNow dispatches a manual trigger to the matching scheduler.
func (m *SchedulerManager) FetchNow(ctx context.Context, params IngestParams) (TriggerResult, error) {
	scheduler, ok := m.schedulers[params.Granularity]
	if !ok {
		return TriggerResult{}, balance.NewError(balance.KindUnknownGranularity, fmt.Sprintf("no scheduler for granularity %q", params.Granularity))
	}
	return scheduler.FetchNow(ctx, params), nil
}

func (m *SchedulerManager) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
