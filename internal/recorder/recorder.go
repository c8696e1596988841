package recorder

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finexia-io/finexia-stream/internal/stream"
)

// Recorder routes stream events into per-type buffers and runs the batch
// writers that drain them. Attach subscribes listeners on a multiplexer;
// the listeners only enqueue, so the read goroutine never blocks on the
// database.
type Recorder struct {
	logger *slog.Logger

	predictions *GrowableBuffer[stream.Event]
	pipeline    *GrowableBuffer[stream.Event]

	predictionWriter *PredictionWriter
	pipelineWriter   *PipelineWriter
}

// NewRecorder creates a recorder backed by the given pool.
func NewRecorder(cfg WriterConfig, bufferSize int, db *pgxpool.Pool, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}

	predictions := NewGrowableBuffer[stream.Event](bufferSize)
	pipeline := NewGrowableBuffer[stream.Event](bufferSize)

	return &Recorder{
		logger:           logger,
		predictions:      predictions,
		pipeline:         pipeline,
		predictionWriter: NewPredictionWriter(cfg, predictions, db, logger),
		pipelineWriter:   NewPipelineWriter(cfg, pipeline, db, logger),
	}
}

// Attach registers recording listeners for one subscription.
func (r *Recorder) Attach(mux *stream.Mux, topic, taskID string) {
	switch topic {
	case "predictions":
		mux.AddListener(topic, taskID, stream.TypePrediction, r.enqueuePrediction)
	case "pipeline":
		mux.AddListener(topic, taskID, stream.TypePipelineStatus, r.enqueuePipeline)
		mux.AddListener(topic, taskID, stream.TypeModelStatus, r.enqueuePipeline)
	}
}

// Start launches the batch writers.
func (r *Recorder) Start(ctx context.Context) error {
	if err := r.predictionWriter.Start(ctx); err != nil {
		return err
	}
	return r.pipelineWriter.Start(ctx)
}

// Stop closes the buffers and drains the writers.
func (r *Recorder) Stop(ctx context.Context) error {
	r.predictions.Close()
	r.pipeline.Close()

	if err := r.predictionWriter.Stop(ctx); err != nil {
		return err
	}
	return r.pipelineWriter.Stop(ctx)
}

// Stats returns metrics for both writers.
func (r *Recorder) Stats() (predictions, pipeline WriterMetrics) {
	return r.predictionWriter.Stats(), r.pipelineWriter.Stats()
}

func (r *Recorder) enqueuePrediction(ev stream.Event) {
	if !r.predictions.Send(ev) {
		r.logger.Warn("prediction buffer closed, event dropped", "message_id", ev.Msg.MessageID)
	}
}

func (r *Recorder) enqueuePipeline(ev stream.Event) {
	if !r.pipeline.Send(ev) {
		r.logger.Warn("pipeline buffer closed, event dropped", "message_id", ev.Msg.MessageID)
	}
}
