package stream

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Supervisor keeps one key connected. The Mux itself never retries, so the
// supervisor watches the synthetic connection events and re-invokes Connect
// with exponential backoff after each disconnect, resetting the backoff
// once the stream comes back up. Cancel the context passed to Run to stop;
// the supervisor disconnects the key on the way out.
type Supervisor struct {
	mux    *Mux
	topic  string
	taskID string
	logger *slog.Logger

	// Reconnect delays. Zero values fall back to 1s base / 60s max.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	up   chan struct{}
	down chan struct{}
}

// NewSupervisor creates a supervisor for (topic, taskID).
func NewSupervisor(mux *Mux, topic, taskID string, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		mux:    mux,
		topic:  topic,
		taskID: taskID,
		logger: logger,
		up:     make(chan struct{}, 1),
		down:   make(chan struct{}, 1),
	}
}

// Run connects the key and keeps it connected until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	listener := func(ev Event) {
		switch ev.Status {
		case StatusConnected:
			select {
			case s.up <- struct{}{}:
			default:
			}
		case StatusDisconnected:
			select {
			case s.down <- struct{}{}:
			default:
			}
		}
	}

	s.mux.AddListener(s.topic, s.taskID, EventConnection, listener)
	defer s.mux.RemoveListener(s.topic, s.taskID, EventConnection, listener)

	policy := backoff.NewExponentialBackOff()
	if s.BaseDelay > 0 {
		policy.InitialInterval = s.BaseDelay
	}
	policy.MaxInterval = 60 * time.Second
	if s.MaxDelay > 0 {
		policy.MaxInterval = s.MaxDelay
	}
	policy.Reset()

	if !s.mux.Connect(s.topic, s.taskID) {
		s.signalDown()
	}

	for {
		select {
		case <-ctx.Done():
			s.mux.Disconnect(s.topic, s.taskID)
			return ctx.Err()

		case <-s.up:
			policy.Reset()

		case <-s.down:
			wait := policy.NextBackOff()
			s.logger.Info("stream down, reconnecting",
				"topic", s.topic,
				"task_id", s.taskID,
				"wait", wait,
			)

			select {
			case <-ctx.Done():
				s.mux.Disconnect(s.topic, s.taskID)
				return ctx.Err()
			case <-time.After(wait):
			}

			if !s.mux.Connect(s.topic, s.taskID) {
				// Still no credential; go around again.
				s.signalDown()
			}
		}
	}
}

func (s *Supervisor) signalDown() {
	select {
	case s.down <- struct{}{}:
	default:
	}
}
