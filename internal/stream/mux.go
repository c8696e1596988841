package stream

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"reflect"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// heartbeatReply is the literal liveness pong sent back for heartbeat frames.
var heartbeatReply = []byte("heartbeat")

// Mux owns named WebSocket connections keyed by (topic, optional task id)
// and fans inbound messages out to listeners registered by event type.
//
// At most one live socket exists per key. Listener registrations are
// independent of connection lifecycle: they may be added before a
// connection exists and survive it closing. The Mux never reconnects on
// its own; see Supervisor.
type Mux struct {
	cfg    Config
	tokens TokenSource
	logger *slog.Logger

	mu        sync.Mutex
	conns     map[string]*conn
	listeners map[string]map[string][]Listener
}

// conn is one connection instance. A new instance is created per Connect;
// status transitions within an instance are monotonic.
type conn struct {
	key    string
	topic  string
	taskID string

	mu     sync.Mutex
	ws     *websocket.Conn
	status Status
	closed bool

	done chan struct{}

	// Write serialization
	writeMu sync.Mutex
}

// NewMux creates a connection multiplexer.
func NewMux(cfg Config, tokens TokenSource, logger *slog.Logger) *Mux {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = DefaultConfig().HandshakeTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Mux{
		cfg:       cfg,
		tokens:    tokens,
		logger:    logger,
		conns:     make(map[string]*conn),
		listeners: make(map[string]map[string][]Listener),
	}
}

// deriveKey maps (topic, taskID) to the connection key. A task-scoped
// stream is a distinct key even when it shares the topic string.
func deriveKey(topic, taskID string) string {
	if taskID == "" {
		return topic
	}
	return topic + ":" + taskID
}

// Connect opens a connection for (topic, taskID). It returns true once the
// attempt has been initiated without waiting for the socket to establish,
// or immediately when a live connection already exists for the key. It
// returns false without side effects when no credential is available.
func (m *Mux) Connect(topic, taskID string) bool {
	token, ok := m.tokens.Token()
	if !ok {
		m.logger.Warn("connect refused: no authenticated session",
			"topic", topic,
			"task_id", taskID,
		)
		return false
	}

	key := deriveKey(topic, taskID)

	m.mu.Lock()
	if _, exists := m.conns[key]; exists {
		m.mu.Unlock()
		return true
	}
	c := &conn{
		key:    key,
		topic:  topic,
		taskID: taskID,
		status: StatusConnecting,
		done:   make(chan struct{}),
	}
	m.conns[key] = c
	m.mu.Unlock()

	go m.dial(c, token)

	return true
}

// Disconnect actively closes the connection for the key, removes its
// record, and returns true. A key with no live connection is a no-op
// returning false.
func (m *Mux) Disconnect(topic, taskID string) bool {
	key := deriveKey(topic, taskID)

	m.mu.Lock()
	c, ok := m.conns[key]
	if ok {
		delete(m.conns, key)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}

	c.mu.Lock()
	c.closed = true
	ws := c.ws
	c.mu.Unlock()

	close(c.done)

	if ws != nil {
		ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		ws.Close()
	}

	c.transition(StatusDisconnected)
	m.dispatch(c, Event{Type: EventConnection, Status: StatusDisconnected})

	return true
}

// Status reports the last recorded status for the key. Keys with no
// record report disconnected, never an unknown state.
func (m *Mux) Status(topic, taskID string) Status {
	m.mu.Lock()
	c, ok := m.conns[deriveKey(topic, taskID)]
	m.mu.Unlock()

	if !ok {
		return StatusDisconnected
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// AddListener appends fn to the ordered listener sequence for
// (key, eventType). Duplicate registrations are retained; callers that
// want at-most-once registration must arrange it themselves.
func (m *Mux) AddListener(topic, taskID, eventType string, fn Listener) {
	key := deriveKey(topic, taskID)

	m.mu.Lock()
	defer m.mu.Unlock()

	byType, ok := m.listeners[key]
	if !ok {
		byType = make(map[string][]Listener)
		m.listeners[key] = byType
	}
	byType[eventType] = append(byType[eventType], fn)
}

// RemoveListener removes every occurrence of fn from the sequence for
// (key, eventType), matching on function identity. It returns false only
// when no sequence was ever registered for that key and event type.
func (m *Mux) RemoveListener(topic, taskID, eventType string, fn Listener) bool {
	key := deriveKey(topic, taskID)
	ptr := reflect.ValueOf(fn).Pointer()

	m.mu.Lock()
	defer m.mu.Unlock()

	byType, ok := m.listeners[key]
	if !ok {
		return false
	}
	seq, ok := byType[eventType]
	if !ok {
		return false
	}

	kept := seq[:0]
	for _, l := range seq {
		if reflect.ValueOf(l).Pointer() != ptr {
			kept = append(kept, l)
		}
	}
	for i := len(kept); i < len(seq); i++ {
		seq[i] = nil
	}
	byType[eventType] = kept

	return true
}

// Send writes a JSON payload on the live connection for the key.
func (m *Mux) Send(topic, taskID string, payload any) error {
	m.mu.Lock()
	c, ok := m.conns[deriveKey(topic, taskID)]
	m.mu.Unlock()

	if !ok {
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.send(data, m.cfg.WriteTimeout)
}

// endpoint builds {base}/ws/{topic}[/{taskID}]?token=... .
func (m *Mux) endpoint(topic, taskID, token string) string {
	u := m.cfg.BaseURL + "/ws/" + url.PathEscape(topic)
	if taskID != "" {
		u += "/" + url.PathEscape(taskID)
	}
	return u + "?token=" + url.QueryEscape(token)
}

// dial establishes the socket and runs the read loop. Runs on its own
// goroutine; Connect has already returned by the time it executes.
func (m *Mux) dial(c *conn, token string) {
	dialer := websocket.Dialer{
		HandshakeTimeout: m.cfg.HandshakeTimeout,
	}

	ws, _, err := dialer.Dial(m.endpoint(c.topic, c.taskID, token), nil)
	if err != nil {
		m.logger.Warn("websocket dial failed",
			"topic", c.topic,
			"task_id", c.taskID,
			"error", err,
		)
		if c.transition(StatusError) {
			m.dispatch(c, Event{Type: EventError, Err: err})
		}
		m.finish(c)
		return
	}

	c.mu.Lock()
	if c.closed {
		// Disconnect won the race with the handshake.
		c.mu.Unlock()
		ws.Close()
		return
	}
	c.ws = ws
	c.mu.Unlock()

	if !c.transition(StatusConnected) {
		ws.Close()
		return
	}

	m.logger.Debug("websocket connected", "topic", c.topic, "task_id", c.taskID)
	m.dispatch(c, Event{Type: EventConnection, Status: StatusConnected})

	m.readLoop(c, ws)
}

// readLoop delivers inbound frames until the socket closes. Frames on a
// single connection are handled, and therefore dispatched, in arrival
// order.
func (m *Mux) readLoop(c *conn, ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			// Disconnect already performed the bookkeeping.
			select {
			case <-c.done:
				return
			default:
			}

			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if c.transition(StatusError) {
					m.dispatch(c, Event{Type: EventError, Err: err})
				}
			}
			m.finish(c)
			return
		}

		m.handleFrame(c, data, receivedAt)
	}
}

// handleFrame decodes one inbound frame and routes it. A heartbeat frame
// is answered on the wire instead of being dispatched; an unparseable
// frame is logged and dropped without touching connection state.
func (m *Mux) handleFrame(c *conn, data []byte, receivedAt time.Time) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		m.logger.Warn("dropping unparseable frame",
			"topic", c.topic,
			"task_id", c.taskID,
			"bytes", len(data),
		)
		return
	}

	if msg.Type == TypeHeartbeat {
		if err := c.send(heartbeatReply, m.cfg.WriteTimeout); err != nil {
			m.logger.Debug("heartbeat reply failed", "topic", c.topic, "error", err)
		}
		return
	}

	m.dispatch(c, Event{Type: msg.Type, Msg: msg, ReceivedAt: receivedAt})
}

// finish records the terminal disconnect for a connection instance: the
// record is removed before the synthetic connection event fires so that a
// listener may immediately re-invoke Connect for the same key.
func (m *Mux) finish(c *conn) {
	c.transition(StatusDisconnected)

	m.mu.Lock()
	if m.conns[c.key] == c {
		delete(m.conns, c.key)
	}
	m.mu.Unlock()

	m.dispatch(c, Event{Type: EventConnection, Status: StatusDisconnected})
}

// dispatch invokes the listeners registered for (key, event type) in
// registration order, iterating over a snapshot so listeners may mutate
// the registry, and isolating panics per callback.
func (m *Mux) dispatch(c *conn, ev Event) {
	ev.Topic = c.topic
	ev.TaskID = c.taskID

	m.mu.Lock()
	var fns []Listener
	if byType, ok := m.listeners[c.key]; ok {
		if seq := byType[ev.Type]; len(seq) > 0 {
			fns = make([]Listener, len(seq))
			copy(fns, seq)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		m.invoke(fn, ev)
	}
}

func (m *Mux) invoke(fn Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("listener panicked",
				"topic", ev.Topic,
				"task_id", ev.TaskID,
				"event_type", ev.Type,
				"panic", r,
			)
		}
	}()
	fn(ev)
}

// transition advances the instance status, refusing non-monotonic moves.
func (c *conn) transition(to Status) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.status {
	case StatusConnecting:
		// any of connected, error, disconnected
	case StatusConnected:
		if to == StatusConnecting {
			return false
		}
	case StatusError:
		if to != StatusDisconnected {
			return false
		}
	case StatusDisconnected:
		return false
	}
	if to == c.status {
		return false
	}
	c.status = to
	return true
}

// send writes a single text frame, serializing writers.
func (c *conn) send(data []byte, timeout time.Duration) error {
	c.mu.Lock()
	ws := c.ws
	closed := c.closed
	c.mu.Unlock()

	if ws == nil || closed {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ws.SetWriteDeadline(time.Now().Add(timeout))
	return ws.WriteMessage(websocket.TextMessage, data)
}
