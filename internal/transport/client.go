// Package transport bridges the agent to the game through a WebSocket
// sidecar that owns the protocol session. Observations and chat arrive as
// JSON frames; motor effects leave as action frames.
package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/sentinel/internal/world"
)

var (
	// ErrNotConnected is returned by actions sent while the socket is down.
	ErrNotConnected = errors.New("bridge not connected")
	// ErrOutboxFull is returned when the writer has fallen behind. The
	// action is dropped.
	ErrOutboxFull = errors.New("bridge outbox full")
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
	maxBackoff   = 5 * time.Second
	outboxSize   = 64
)

// Client is a reconnecting bridge connection. It implements motor.Actuator
// and world.Sensor.
type Client struct {
	url  string
	name string

	onChat  func(sender, text string)
	onTrade func(Trade)

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	lastErr   string
	obs       world.Snapshot
	obsCount  uint64

	outbox  chan []byte // Drained by the per-connection writer
	dropped uint64

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewClient creates a client for the bridge at url. name is announced in the
// hello frame.
func NewClient(url, name string) *Client {
	return &Client{
		url:  url,
		name:   name,
		outbox: make(chan []byte, outboxSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// OnChat sets the chat handler. Call before Start.
func (c *Client) OnChat(fn func(sender, text string)) { c.onChat = fn }

// OnTrade sets the trade handler. Call before Start.
func (c *Client) OnTrade(fn func(Trade)) { c.onTrade = fn }

// Start connects in the background, reconnecting with backoff until Close.
func (c *Client) Start() {
	c.startOnce.Do(func() {
		go c.run()
	})
}

// Close stops the client and waits for the read loop to exit.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
		c.disconnect()
		c.startOnce.Do(func() { close(c.done) })
		<-c.done
	})
}

// Connected reports whether the socket is up.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// LastError returns the most recent connection error, if any.
func (c *Client) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Snapshot implements world.Sensor with the latest observation.
func (c *Client) Snapshot() world.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.obs
}

// Observations is the number of observation frames received.
func (c *Client) Observations() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.obsCount
}

// ── motor.Actuator ──────────────────────────────────────────────────

func (c *Client) Chat(text string) error {
	return c.send(actionFrame{Action: ActChat, Text: text})
}

func (c *Client) SetLook(yaw, pitch float32) error {
	return c.send(actionFrame{Action: ActLook, Yaw: yaw, Pitch: pitch})
}

func (c *Client) Jump() error {
	return c.send(actionFrame{Action: ActJump})
}

func (c *Client) SetSprint(on bool) error {
	return c.send(actionFrame{Action: ActSprint, On: on})
}

func (c *Client) SetSneak(on bool) error {
	return c.send(actionFrame{Action: ActSneak, On: on})
}

func (c *Client) Walk(on bool) error {
	return c.send(actionFrame{Action: ActWalk, On: on})
}

func (c *Client) BeginGoto(target world.BlockPos) error {
	return c.send(actionFrame{Action: ActGoto, Target: &target})
}

// Dropped is the number of actions discarded because the outbox was full.
func (c *Client) Dropped() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dropped
}

// send queues f for the writer goroutine. It never blocks on the socket.
func (c *Client) send(f actionFrame) error {
	f.Type = TypeAction
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if !c.Connected() {
		return ErrNotConnected
	}
	select {
	case c.outbox <- b:
		return nil
	default:
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
		return ErrOutboxFull
	}
}

// writeLoop drains the outbox onto conn until quit closes or a write fails.
// A failed write closes conn, which ends the read loop and reconnects.
func (c *Client) writeLoop(conn *websocket.Conn, quit <-chan struct{}) {
	for {
		select {
		case <-quit:
			return
		case <-c.stop:
			return
		case b := <-c.outbox:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				slog.Warn("bridge write failed", "error", err)
				_ = conn.Close()
				return
			}
		}
	}
}

// drainOutbox discards actions queued for a connection that is gone.
func (c *Client) drainOutbox() {
	for {
		select {
		case <-c.outbox:
		default:
			return
		}
	}
}

// ── Connection loop ─────────────────────────────────────────────────

func (c *Client) run() {
	defer close(c.done)

	backoff := 200 * time.Millisecond
	for {
		select {
		case <-c.stop:
			c.disconnect()
			return
		default:
		}

		err := c.connectAndReadLoop()
		c.mu.Lock()
		c.connected = false
		c.conn = nil
		if err != nil {
			c.lastErr = err.Error()
		}
		c.mu.Unlock()
		if err != nil {
			slog.Warn("bridge connection lost", "url", c.url, "error", err, "retry_in", backoff)
		}

		select {
		case <-c.stop:
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (c *Client) connectAndReadLoop() error {
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := d.Dial(c.url, http.Header{})
	if err != nil {
		return err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(helloFrame{Type: TypeHello, Name: c.name}); err != nil {
		_ = conn.Close()
		return err
	}

	c.drainOutbox()
	quit := make(chan struct{})
	defer close(quit)
	go c.writeLoop(conn, quit)

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.lastErr = ""
	c.mu.Unlock()
	slog.Info("bridge connected", "url", c.url)

	for {
		select {
		case <-c.stop:
			_ = conn.Close()
			return nil
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			select {
			case <-c.stop:
				return nil
			default:
			}
			return err
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg []byte) {
	var base baseFrame
	if err := json.Unmarshal(msg, &base); err != nil {
		slog.Debug("bridge: undecodable frame", "error", err)
		return
	}
	switch base.Type {
	case TypeObs:
		var f obsFrame
		if err := json.Unmarshal(msg, &f); err != nil {
			return
		}
		c.mu.Lock()
		c.obs = f.Obs
		c.obsCount++
		c.mu.Unlock()

	case TypeChat:
		var f chatFrame
		if err := json.Unmarshal(msg, &f); err != nil {
			return
		}
		sender, text := f.Sender, f.Text
		if sender == "" {
			var ok bool
			if sender, text, ok = ParseChatLine(f.Line); !ok {
				return
			}
		}
		if c.onChat != nil {
			c.onChat(sender, text)
		}

	case TypeTrade:
		var t Trade
		if err := json.Unmarshal(msg, &t); err != nil || t.Player == "" || t.Quantity <= 0 {
			return
		}
		if c.onTrade != nil {
			c.onTrade(t)
		}
	}
}

func (c *Client) disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}
