package notify

import (
	"context"
	"time"
)

// IngestAlert represents a failed ingestion notification payload.
type IngestAlert struct {
	Granularity string    `json:"granularity"`
	Kind        string    `json:"kind"`
	Message     string    `json:"message"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Notifier sends notifications.
type Notifier interface {
	Notify(ctx context.Context, alert IngestAlert) error
}
