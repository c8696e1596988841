package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/finexia-io/finexia-stream/internal/api"
	"github.com/finexia-io/finexia-stream/internal/stream"
)

// Entry is the latest prediction for one symbol.
type Entry struct {
	SymbolID       int
	Symbol         string
	Direction      string
	Confidence     float64
	PredictionDate string
	UpdatedAt      time.Time
}

// Update is pushed to subscribers after every change.
type Update struct {
	Entry Entry
	Stale bool
}

// Board keeps the latest prediction per symbol, rebuilt purely from stream
// events after an optional REST prime. While the predictions connection is
// down the board marks itself stale; entries keep their last values until
// fresh frames arrive.
type Board struct {
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[int]Entry
	stale   bool
	subs    []chan Update
}

// NewBoard creates an empty board. It starts stale until the predictions
// connection reports connected.
func NewBoard(logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{
		logger:  logger,
		entries: make(map[int]Entry),
		stale:   true,
	}
}

// Attach registers the board's listeners for the predictions topic.
func (b *Board) Attach(mux *stream.Mux) {
	mux.AddListener("predictions", "", stream.TypePrediction, b.handlePrediction)
	mux.AddListener("predictions", "", stream.EventConnection, b.handleConnection)
}

// Prime seeds the board from the REST API. Stream frames that arrive later
// overwrite primed entries.
func (b *Board) Prime(ctx context.Context, client *api.Client) error {
	resp, err := client.GetPredictions(ctx, api.GetPredictionsOptions{})
	if err != nil {
		return err
	}

	b.mu.Lock()
	for _, p := range resp.Predictions {
		b.entries[p.SymbolID] = Entry{
			SymbolID:       p.SymbolID,
			Symbol:         p.SymbolName,
			Direction:      p.DirectionPrediction,
			Confidence:     p.StrongMoveConfidence,
			PredictionDate: p.Date,
			UpdatedAt:      time.Now(),
		}
	}
	count := len(b.entries)
	b.mu.Unlock()

	b.logger.Info("board primed", "entries", count)
	return nil
}

// Subscribe returns a channel receiving every board change. Slow consumers
// miss updates rather than blocking the stream's read goroutine.
func (b *Board) Subscribe() <-chan Update {
	ch := make(chan Update, 64)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Get returns the entry for one symbol.
func (b *Board) Get(symbolID int) (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[symbolID]
	return e, ok
}

// Snapshot returns all entries ordered by symbol.
func (b *Board) Snapshot() []Entry {
	b.mu.RLock()
	entries := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		entries = append(entries, e)
	}
	b.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Symbol < entries[j].Symbol
	})
	return entries
}

// Stale reports whether the predictions connection is currently down.
func (b *Board) Stale() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stale
}

func (b *Board) handlePrediction(ev stream.Event) {
	var data struct {
		SymbolID       int     `json:"symbol_id"`
		Symbol         string  `json:"symbol"`
		Direction      string  `json:"direction"`
		Confidence     float64 `json:"confidence"`
		PredictionDate string  `json:"prediction_date"`
	}
	if err := json.Unmarshal(ev.Msg.Data, &data); err != nil {
		b.logger.Warn("unparseable prediction data", "error", err)
		return
	}
	if data.SymbolID == 0 {
		return
	}

	entry := Entry{
		SymbolID:       data.SymbolID,
		Symbol:         data.Symbol,
		Direction:      data.Direction,
		Confidence:     data.Confidence,
		PredictionDate: data.PredictionDate,
		UpdatedAt:      ev.ReceivedAt,
	}

	b.mu.Lock()
	b.entries[data.SymbolID] = entry
	stale := b.stale
	subs := make([]chan Update, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	b.notify(subs, Update{Entry: entry, Stale: stale})
}

func (b *Board) handleConnection(ev stream.Event) {
	b.mu.Lock()
	switch ev.Status {
	case stream.StatusConnected:
		b.stale = false
	case stream.StatusDisconnected:
		b.stale = true
	}
	stale := b.stale
	subs := make([]chan Update, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	b.notify(subs, Update{Stale: stale})
}

func (b *Board) notify(subs []chan Update, u Update) {
	for _, ch := range subs {
		select {
		case ch <- u:
		default:
		}
	}
}
