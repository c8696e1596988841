package pipeline

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/finexia-io/finexia-stream/internal/stream"
)

// Terminal pipeline statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// StepUpdate is one observed step transition.
type StepUpdate struct {
	Status     string
	Step       string
	Progress   float64
	ReceivedAt time.Time
}

// State is a snapshot of the watched run.
type State struct {
	TaskID   string
	Status   string
	Step     string
	Progress float64
	Steps    []StepUpdate
	Done     bool
}

// Watcher follows a single pipeline run on its task-scoped stream and
// reports when the run reaches a terminal status. Updates arriving after
// the terminal frame are ignored.
type Watcher struct {
	taskID string
	logger *slog.Logger

	mu    sync.RWMutex
	state State

	done     chan struct{}
	doneOnce sync.Once
}

// NewWatcher creates a watcher for one task run.
func NewWatcher(taskID string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		taskID: taskID,
		logger: logger,
		state:  State{TaskID: taskID},
		done:   make(chan struct{}),
	}
}

// Attach subscribes the watcher on the task-scoped pipeline stream.
func (w *Watcher) Attach(mux *stream.Mux) {
	mux.AddListener("pipeline", w.taskID, stream.TypePipelineStatus, w.handleStatus)
	mux.AddListener("pipeline", w.taskID, stream.EventConnection, w.handleConnection)
}

// Detach removes the watcher's listeners.
func (w *Watcher) Detach(mux *stream.Mux) {
	mux.RemoveListener("pipeline", w.taskID, stream.TypePipelineStatus, w.handleStatus)
	mux.RemoveListener("pipeline", w.taskID, stream.EventConnection, w.handleConnection)
}

// Done is closed when the run reaches a terminal status.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// State returns a snapshot of the run.
func (w *Watcher) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := w.state
	snap.Steps = make([]StepUpdate, len(w.state.Steps))
	copy(snap.Steps, w.state.Steps)
	return snap
}

// Terminal reports whether a status ends the run.
func Terminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func (w *Watcher) handleStatus(ev stream.Event) {
	var data struct {
		TaskID   string  `json:"task_id"`
		Status   string  `json:"status"`
		Step     string  `json:"step"`
		Progress float64 `json:"progress"`
	}
	if err := json.Unmarshal(ev.Msg.Data, &data); err != nil {
		w.logger.Warn("unparseable pipeline status", "error", err, "task_id", w.taskID)
		return
	}
	// Task-scoped streams should only carry this run, but a tenant-wide
	// frame relayed with another task id is not ours.
	if data.TaskID != "" && data.TaskID != w.taskID {
		return
	}

	w.mu.Lock()
	if w.state.Done {
		w.mu.Unlock()
		return
	}
	w.state.Status = data.Status
	w.state.Step = data.Step
	w.state.Progress = data.Progress
	w.state.Steps = append(w.state.Steps, StepUpdate{
		Status:     data.Status,
		Step:       data.Step,
		Progress:   data.Progress,
		ReceivedAt: ev.ReceivedAt,
	})
	terminal := Terminal(data.Status)
	if terminal {
		w.state.Done = true
	}
	w.mu.Unlock()

	if terminal {
		w.logger.Info("pipeline run finished", "task_id", w.taskID, "status", data.Status)
		w.doneOnce.Do(func() { close(w.done) })
	}
}

func (w *Watcher) handleConnection(ev stream.Event) {
	if ev.Status != stream.StatusDisconnected {
		return
	}
	w.mu.RLock()
	done := w.state.Done
	w.mu.RUnlock()
	if !done {
		w.logger.Warn("pipeline stream dropped mid-run", "task_id", w.taskID)
	}
}
