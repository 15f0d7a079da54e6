// Package bridge exposes the detector over a websocket: clients receive
// state transitions and may inject signals and visibility changes.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Veraticus/activity-detector/pkg/interfaces"
	"github.com/Veraticus/activity-detector/pkg/logging"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
	maxFrameSize = 4096
)

// VisibilityController sets a document's hidden property.
type VisibilityController interface {
	SetHidden(hidden bool)
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Bridge serves the websocket endpoint.
type Bridge struct {
	window   interfaces.SignalDispatcher
	document VisibilityController
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]bool
	current Message
	closed  bool
}

// New creates a bridge dispatching client signals into window and
// visibility changes into document. document may be nil.
func New(window interfaces.SignalDispatcher, document VisibilityController, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Bridge{
		window:   window,
		document: document,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
	}
}

// Handler returns the bridge's HTTP routes: /ws for the websocket and
// /state for the current state as JSON.
func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", b.handleWS)
	mux.HandleFunc("/state", b.handleState)
	return mux
}

// ListenAndServe serves the bridge on addr until ctx is cancelled.
func (b *Bridge) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		b.logger.Info("bridge listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("bridge server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	b.Close()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("bridge shutdown: %w", err)
	}
	return nil
}

// Broadcast records state as current and sends it to every client.
func (b *Bridge) Broadcast(state string, at time.Time) {
	msg := stateMessage(state, at)
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("broadcast marshal error", "error", err)
		return
	}

	b.mu.Lock()
	b.current = msg
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	for _, c := range clients {
		b.enqueue(c, data)
	}
}

// ClientCount returns the number of connected clients.
func (b *Bridge) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client. Later connections are refused.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for c := range b.clients {
		delete(b.clients, c)
		close(c.send)
	}
}

func (b *Bridge) addClient(conn *websocket.Conn) (*client, bool) {
	c := newClient(conn)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(c.send)
		return nil, false
	}

	// hello and the current state go out before any broadcast can
	hello, _ := json.Marshal(Message{Type: MsgHello, ClientID: c.id})
	c.send <- hello
	if b.current.Type == MsgState {
		state, _ := json.Marshal(b.current)
		c.send <- state
	}

	b.clients[c] = true
	return c, true
}

func (b *Bridge) removeClient(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
}

// enqueue sends data to c, disconnecting clients that cannot keep up.
func (b *Bridge) enqueue(c *client, data []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		b.logger.Warn("bridge client too slow, disconnecting", "client", c.id)
		go b.removeClient(c)
	}
}

func (b *Bridge) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("ws upgrade error", "error", err)
		return
	}
	conn.SetReadLimit(maxFrameSize)

	c, ok := b.addClient(conn)
	if !ok {
		return
	}
	logger := b.logger.With("client", c.id, "remote", r.RemoteAddr)
	logger.Debug("bridge client connected")

	go func() {
		defer func() {
			b.removeClient(c)
			logger.Debug("bridge client disconnected")
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if reply := b.handleMessage(data); reply != nil {
				out, _ := json.Marshal(reply)
				b.enqueue(c, out)
			}
		}
	}()
}

// handleMessage applies one client frame and returns an error reply if the
// frame is invalid.
func (b *Bridge) handleMessage(data []byte) *Message {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return &Message{Type: MsgError, Error: "invalid message: " + err.Error()}
	}

	switch msg.Type {
	case MsgSignal:
		if msg.Name == "" {
			return &Message{Type: MsgError, Error: "signal requires a name"}
		}
		b.window.Dispatch(msg.Name)
	case MsgVisibility:
		if msg.Hidden == nil {
			return &Message{Type: MsgError, Error: "visibility requires hidden"}
		}
		if b.document == nil {
			return &Message{Type: MsgError, Error: "visibility is not supported"}
		}
		b.document.SetHidden(*msg.Hidden)
	default:
		return &Message{Type: MsgError, Error: fmt.Sprintf("unknown message type %q", msg.Type)}
	}
	return nil
}

func (b *Bridge) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	b.mu.RLock()
	current := b.current
	b.mu.RUnlock()

	if current.Type != MsgState {
		http.Error(w, "state not available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(current)
}
