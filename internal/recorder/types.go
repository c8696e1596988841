package recorder

import (
	"time"
)

// WriterConfig contains configuration for batch writers.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: time.Second,
	}
}

// WriterMetrics tracks writer activity.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
}

// predictionRow is a row for the prediction_events table.
type predictionRow struct {
	MessageID      string
	TenantID       int
	ReceivedAt     int64 // Microseconds
	SymbolID       int
	Symbol         string
	Direction      string
	Confidence     float64
	PredictionDate string
	Payload        []byte // Raw data object
}

// pipelineRow is a row for the pipeline_events table.
type pipelineRow struct {
	MessageID  string
	TenantID   int
	TaskID     string
	ReceivedAt int64 // Microseconds
	Status     string
	Step       string
	Progress   float64
	Payload    []byte
}
