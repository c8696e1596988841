package recorder

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/finexia-io/finexia-stream/internal/stream"
)

func TestPredictionWriter_Transform(t *testing.T) {
	cfg := DefaultWriterConfig()
	input := NewGrowableBuffer[stream.Event](10)
	w := NewPredictionWriter(cfg, input, nil, nil)

	receivedAt := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	ev := stream.Event{
		Topic: "predictions",
		Type:  stream.TypePrediction,
		Msg: stream.Message{
			Type:      stream.TypePrediction,
			MessageID: "msg-123",
			TenantID:  7,
			Data:      json.RawMessage(`{"symbol_id":42,"symbol":"AAPL","direction":"up","confidence":0.87,"prediction_date":"2025-06-03"}`),
		},
		ReceivedAt: receivedAt,
	}

	row := w.transform(ev)

	if row.MessageID != "msg-123" {
		t.Errorf("MessageID = %s, want msg-123", row.MessageID)
	}
	if row.TenantID != 7 {
		t.Errorf("TenantID = %d, want 7", row.TenantID)
	}
	if row.ReceivedAt != receivedAt.UnixMicro() {
		t.Errorf("ReceivedAt = %d, want %d", row.ReceivedAt, receivedAt.UnixMicro())
	}
	if row.SymbolID != 42 || row.Symbol != "AAPL" {
		t.Errorf("symbol = %d/%s, want 42/AAPL", row.SymbolID, row.Symbol)
	}
	if row.Direction != "up" {
		t.Errorf("Direction = %s, want up", row.Direction)
	}
	if row.Confidence != 0.87 {
		t.Errorf("Confidence = %v, want 0.87", row.Confidence)
	}
	if row.PredictionDate != "2025-06-03" {
		t.Errorf("PredictionDate = %s, want 2025-06-03", row.PredictionDate)
	}
	if string(row.Payload) != string(ev.Msg.Data) {
		t.Errorf("Payload = %s", row.Payload)
	}
}

func TestPredictionWriter_Transform_MissingMessageID(t *testing.T) {
	cfg := DefaultWriterConfig()
	input := NewGrowableBuffer[stream.Event](10)
	w := NewPredictionWriter(cfg, input, nil, nil)

	ev := stream.Event{
		Msg:        stream.Message{Type: stream.TypePrediction},
		ReceivedAt: time.Now(),
	}

	row := w.transform(ev)
	if row.MessageID == "" {
		t.Error("transform should generate a message id when the frame omits one")
	}
}

func TestPredictionWriter_Transform_BadData(t *testing.T) {
	cfg := DefaultWriterConfig()
	input := NewGrowableBuffer[stream.Event](10)
	w := NewPredictionWriter(cfg, input, nil, nil)

	ev := stream.Event{
		Msg: stream.Message{
			Type:      stream.TypePrediction,
			MessageID: "msg-bad",
			Data:      json.RawMessage(`"not an object"`),
		},
		ReceivedAt: time.Now(),
	}

	// Row still produced; prediction fields stay zero, raw payload kept
	row := w.transform(ev)
	if row.MessageID != "msg-bad" {
		t.Errorf("MessageID = %s, want msg-bad", row.MessageID)
	}
	if row.Symbol != "" || row.SymbolID != 0 {
		t.Errorf("expected zero prediction fields, got %+v", row)
	}
}

func TestPipelineWriter_Transform(t *testing.T) {
	cfg := DefaultWriterConfig()
	input := NewGrowableBuffer[stream.Event](10)
	w := NewPipelineWriter(cfg, input, nil, nil)

	ev := stream.Event{
		Topic:  "pipeline",
		TaskID: "run-7",
		Type:   stream.TypePipelineStatus,
		Msg: stream.Message{
			Type:      stream.TypePipelineStatus,
			MessageID: "msg-456",
			TenantID:  3,
			Data:      json.RawMessage(`{"task_id":"run-7","status":"running","step":"feature_engineering","progress":0.4}`),
		},
		ReceivedAt: time.Now(),
	}

	row := w.transform(ev)

	if row.TaskID != "run-7" {
		t.Errorf("TaskID = %s, want run-7", row.TaskID)
	}
	if row.Status != "running" {
		t.Errorf("Status = %s, want running", row.Status)
	}
	if row.Step != "feature_engineering" {
		t.Errorf("Step = %s, want feature_engineering", row.Step)
	}
	if row.Progress != 0.4 {
		t.Errorf("Progress = %v, want 0.4", row.Progress)
	}
}

func TestPipelineWriter_Transform_TaskIDFallback(t *testing.T) {
	cfg := DefaultWriterConfig()
	input := NewGrowableBuffer[stream.Event](10)
	w := NewPipelineWriter(cfg, input, nil, nil)

	ev := stream.Event{
		Topic:      "pipeline",
		TaskID:     "run-9",
		Msg:        stream.Message{Data: json.RawMessage(`{"status":"queued"}`)},
		ReceivedAt: time.Now(),
	}

	row := w.transform(ev)
	if row.TaskID != "run-9" {
		t.Errorf("TaskID = %s, want subscription fallback run-9", row.TaskID)
	}
}

func TestPredictionWriter_HandleEvent_AddsToBatch(t *testing.T) {
	cfg := WriterConfig{
		BatchSize:     100, // Large batch so no auto-flush
		FlushInterval: time.Hour,
	}
	input := NewGrowableBuffer[stream.Event](10)
	w := NewPredictionWriter(cfg, input, nil, nil)

	w.handleEvent(stream.Event{
		Msg:        stream.Message{MessageID: "msg-1"},
		ReceivedAt: time.Now(),
	})

	w.batchMu.Lock()
	batchLen := len(w.batch)
	w.batchMu.Unlock()

	if batchLen != 1 {
		t.Errorf("batch length = %d, want 1", batchLen)
	}
}

func TestPredictionWriter_Lifecycle(t *testing.T) {
	cfg := WriterConfig{
		BatchSize:     10,
		FlushInterval: 100 * time.Millisecond,
	}
	input := NewGrowableBuffer[stream.Event](10)

	// No database; this exercises the goroutine lifecycle only
	w := NewPredictionWriter(cfg, input, nil, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestRecorder_EnqueueRouting(t *testing.T) {
	r := NewRecorder(DefaultWriterConfig(), 10, nil, nil)

	r.enqueuePrediction(stream.Event{Msg: stream.Message{MessageID: "p-1"}})
	r.enqueuePipeline(stream.Event{Msg: stream.Message{MessageID: "s-1"}})
	r.enqueuePipeline(stream.Event{Msg: stream.Message{MessageID: "s-2"}})

	if r.predictions.Len() != 1 {
		t.Errorf("predictions buffer len = %d, want 1", r.predictions.Len())
	}
	if r.pipeline.Len() != 2 {
		t.Errorf("pipeline buffer len = %d, want 2", r.pipeline.Len())
	}
}

func TestRecorder_StopClosesBuffers(t *testing.T) {
	r := NewRecorder(WriterConfig{BatchSize: 10, FlushInterval: time.Hour}, 10, nil, nil)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	if r.predictions.Send(stream.Event{}) {
		t.Error("predictions buffer should reject sends after Stop")
	}
}
