package recorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finexia-io/finexia-stream/internal/stream"
)

// pipelineData is the data object of a pipeline_status event.
type pipelineData struct {
	TaskID   string  `json:"task_id"`
	Status   string  `json:"status"`
	Step     string  `json:"step"`
	Progress float64 `json:"progress"`
}

// PipelineWriter consumes pipeline status events from its buffer and
// writes them to the pipeline_events table.
type PipelineWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	input *GrowableBuffer[stream.Event]
	db    *pgxpool.Pool

	batch       []pipelineRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewPipelineWriter creates a new PipelineWriter.
func NewPipelineWriter(
	cfg WriterConfig,
	input *GrowableBuffer[stream.Event],
	db *pgxpool.Pool,
	logger *slog.Logger,
) *PipelineWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]pipelineRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming events and writing to the database.
func (w *PipelineWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("pipeline writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *PipelineWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping pipeline writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("pipeline writer stopped")
	case <-ctx.Done():
		w.logger.Warn("pipeline writer stop timed out")
	}

	w.flush()

	return nil
}

// Stats returns current metrics.
func (w *PipelineWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

func (w *PipelineWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			ev, ok := w.input.TryReceive()
			if !ok {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}
			w.handleEvent(ev)
		}
	}
}

func (w *PipelineWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush()
		}
	}
}

func (w *PipelineWriter) handleEvent(ev stream.Event) {
	row := w.transform(ev)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

// transform converts a pipeline_status event to a pipelineRow. The task id
// prefers the data object's task_id, falling back to the subscription's
// task scope for frames that omit it.
func (w *PipelineWriter) transform(ev stream.Event) pipelineRow {
	var data pipelineData
	if len(ev.Msg.Data) > 0 {
		if err := json.Unmarshal(ev.Msg.Data, &data); err != nil {
			w.logger.Warn("unparseable pipeline data", "error", err, "message_id", ev.Msg.MessageID)
		}
	}

	messageID := ev.Msg.MessageID
	if messageID == "" {
		messageID = uuid.NewString()
	}

	taskID := data.TaskID
	if taskID == "" {
		taskID = ev.TaskID
	}

	return pipelineRow{
		MessageID:  messageID,
		TenantID:   ev.Msg.TenantID,
		TaskID:     taskID,
		ReceivedAt: ev.ReceivedAt.UnixMicro(),
		Status:     data.Status,
		Step:       data.Step,
		Progress:   data.Progress,
		Payload:    []byte(ev.Msg.Data),
	}
}

func (w *PipelineWriter) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	batch := w.batch
	w.batch = make([]pipelineRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed pipeline events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

func (w *PipelineWriter) batchInsert(rows []pipelineRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO pipeline_events (message_id, tenant_id, task_id, received_at, status, step, progress, payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (message_id) DO NOTHING
		`, r.MessageID, r.TenantID, r.TaskID, r.ReceivedAt, r.Status, r.Step, r.Progress, r.Payload)
	}

	results := w.db.SendBatch(w.ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
