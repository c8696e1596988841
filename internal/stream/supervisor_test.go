package stream

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestSupervisor_ReconnectsAfterDrop(t *testing.T) {
	var upgrades int32

	server := mockWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		n := atomic.AddInt32(&upgrades, 1)
		if n == 1 {
			// Drop the first connection straight away.
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second),
			)
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	mux := newTestMux(server)

	sup := NewSupervisor(mux, "predictions", "", nil)
	sup.BaseDelay = 10 * time.Millisecond
	sup.MaxDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() {
		runDone <- sup.Run(ctx)
	}()

	deadline := time.After(3 * time.Second)
	for atomic.LoadInt32(&upgrades) < 2 {
		select {
		case <-deadline:
			t.Fatalf("supervisor never reconnected, upgrades = %d", atomic.LoadInt32(&upgrades))
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-runDone:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if got := mux.Status("predictions", ""); got != StatusDisconnected {
		t.Errorf("Status after stop = %s, want disconnected", got)
	}
}

func TestSupervisor_RetriesWhenTokenMissing(t *testing.T) {
	tokens := &flippableTokens{}

	server := mockWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	cfg := Config{BaseURL: wsURL(server)}
	mux := NewMux(cfg, tokens, nil)

	connected := make(chan Event, 1)
	mux.AddListener("predictions", "", EventConnection, func(ev Event) {
		if ev.Status == StatusConnected {
			connected <- ev
		}
	})

	sup := NewSupervisor(mux, "predictions", "", nil)
	sup.BaseDelay = 10 * time.Millisecond
	sup.MaxDelay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	// No session yet: the supervisor keeps retrying without connecting.
	time.Sleep(100 * time.Millisecond)
	if got := mux.Status("predictions", ""); got != StatusDisconnected {
		t.Fatalf("Status = %s, want disconnected while unauthenticated", got)
	}

	tokens.set("tok")
	waitEvent(t, connected, "connected event after login")
}

// flippableTokens becomes valid once set is called.
type flippableTokens struct {
	v atomic.Value
}

func (f *flippableTokens) set(token string) {
	f.v.Store(token)
}

func (f *flippableTokens) Token() (string, bool) {
	s, _ := f.v.Load().(string)
	return s, s != ""
}
