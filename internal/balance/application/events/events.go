package events

import "time"

// IngestCompleted is published after an ingest run finishes without error.
type IngestCompleted struct {
	Granularity string    `json:"granularity"`
	Status      string    `json:"status"`
	SavedCount  int       `json:"saved_count"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// IngestFailed is published when an ingest run surfaces an error.
type IngestFailed struct {
	Granularity string    `json:"granularity"`
	Kind        string    `json:"kind"`
	Message     string    `json:"message"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	OccurredAt  time.Time `json:"occurred_at"`
}
