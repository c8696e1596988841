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

// predictionData is the data object of a prediction event.
type predictionData struct {
	SymbolID       int     `json:"symbol_id"`
	Symbol         string  `json:"symbol"`
	Direction      string  `json:"direction"`
	Confidence     float64 `json:"confidence"`
	PredictionDate string  `json:"prediction_date"`
}

// PredictionWriter consumes prediction events from its buffer and writes
// them to the prediction_events table.
type PredictionWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	input *GrowableBuffer[stream.Event]
	db    *pgxpool.Pool

	batch       []predictionRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewPredictionWriter creates a new PredictionWriter.
func NewPredictionWriter(
	cfg WriterConfig,
	input *GrowableBuffer[stream.Event],
	db *pgxpool.Pool,
	logger *slog.Logger,
) *PredictionWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictionWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]predictionRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming events and writing to the database.
func (w *PredictionWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("prediction writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *PredictionWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping prediction writer")

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
		w.logger.Info("prediction writer stopped")
	case <-ctx.Done():
		w.logger.Warn("prediction writer stop timed out")
	}

	// Final flush
	w.flush()

	return nil
}

// Stats returns current metrics.
func (w *PredictionWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

func (w *PredictionWriter) consumeLoop() {
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

func (w *PredictionWriter) flushLoop() {
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

func (w *PredictionWriter) handleEvent(ev stream.Event) {
	row := w.transform(ev)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

// transform converts a prediction event to a predictionRow. Frames without
// a message_id get a generated one so the conflict target stays non-null.
func (w *PredictionWriter) transform(ev stream.Event) predictionRow {
	var data predictionData
	if len(ev.Msg.Data) > 0 {
		if err := json.Unmarshal(ev.Msg.Data, &data); err != nil {
			w.logger.Warn("unparseable prediction data", "error", err, "message_id", ev.Msg.MessageID)
		}
	}

	messageID := ev.Msg.MessageID
	if messageID == "" {
		messageID = uuid.NewString()
	}

	return predictionRow{
		MessageID:      messageID,
		TenantID:       ev.Msg.TenantID,
		ReceivedAt:     ev.ReceivedAt.UnixMicro(),
		SymbolID:       data.SymbolID,
		Symbol:         data.Symbol,
		Direction:      data.Direction,
		Confidence:     data.Confidence,
		PredictionDate: data.PredictionDate,
		Payload:        []byte(ev.Msg.Data),
	}
}

func (w *PredictionWriter) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	batch := w.batch
	w.batch = make([]predictionRow, 0, w.cfg.BatchSize)
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

	w.logger.Debug("flushed predictions",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

func (w *PredictionWriter) batchInsert(rows []predictionRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO prediction_events (message_id, tenant_id, received_at, symbol_id, symbol, direction, confidence, prediction_date, payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (message_id) DO NOTHING
		`, r.MessageID, r.TenantID, r.ReceivedAt, r.SymbolID, r.Symbol, r.Direction, r.Confidence, r.PredictionDate, r.Payload)
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
