// Package transport owns the single logical full-duplex connection to the
// translation service. It delivers inbound protocol messages to subscribers
// in strict arrival order and reconstitutes the connection after unexpected
// loss with a fixed-delay, single-in-flight retry.
package transport

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/dbrezina/medinter/internal/protocol"
)

// DefaultReconnectDelay is the fixed wait before one reconnection attempt
// after an unexpected close.
const DefaultReconnectDelay = 2 * time.Second

// Config configures a Client.
type Config struct {
	// URL is the websocket endpoint, e.g. ws://host:3000/ws/translate.
	URL string
	// ReconnectDelay overrides DefaultReconnectDelay. Mostly for tests.
	ReconnectDelay time.Duration
	Logger         *log.Logger
}

type listener struct {
	id int
	fn func(protocol.Inbound)
}

type stateListener struct {
	id int
	fn func(connected bool)
}

// Client is the transport client. All methods are safe for concurrent use.
// Sends while disconnected are dropped, not queued; the drop is logged so
// the policy stays observable.
type Client struct {
	url    string
	delay  time.Duration
	logger *log.Logger
	dialer *websocket.Dialer

	mu             sync.Mutex
	conn           *websocket.Conn
	connected      bool
	dialing        bool
	closing        bool
	reconnectTimer *time.Timer
	listeners      []listener
	stateListeners []stateListener
	nextID         int

	writeMu sync.Mutex
}

func New(cfg Config) *Client {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		url:    cfg.URL,
		delay:  delay,
		logger: logger,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Connect establishes the connection if not already open. Establishment is
// asynchronous; completion is observed via Connected or a state listener.
// A pending reconnection timer is cancelled.
func (c *Client) Connect() {
	c.mu.Lock()
	c.closing = false
	c.cancelReconnectLocked()
	if c.connected || c.dialing {
		c.mu.Unlock()
		return
	}
	c.dialing = true
	c.mu.Unlock()

	go c.dial()
}

func (c *Client) dial() {
	conn, resp, err := c.dialer.Dial(c.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	c.dialing = false
	if err != nil {
		closing := c.closing
		c.mu.Unlock()
		c.logger.Warn("connect failed", "url", c.url, "err", err)
		if !closing {
			c.scheduleReconnect()
		}
		return
	}
	if c.closing {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.logger.Debug("connected", "url", c.url)
	c.notifyState(true)
	go c.readLoop(conn)
}

// Disconnect closes the connection and cancels any pending reconnection.
// Safe to call when already disconnected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closing = true
	c.cancelReconnectLocked()
	conn := c.conn
	wasConnected := c.connected
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if wasConnected {
		c.notifyState(false)
	}
}

// Connected reports whether the connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send serializes and transmits one protocol message if and only if the
// connection is open. Otherwise the message is discarded.
func (c *Client) Send(m protocol.Outbound) {
	data, err := protocol.MarshalOutbound(m)
	if err != nil {
		c.logger.Error("marshal outbound message", "err", err)
		return
	}

	c.mu.Lock()
	conn := c.conn
	open := c.connected
	c.mu.Unlock()
	if !open || conn == nil {
		c.logger.Warn("dropping message while disconnected", "type", messageType(data))
		return
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Warn("send failed", "err", err)
	}
}

// Subscribe registers a listener invoked once per inbound message, in
// arrival order, with no concurrent overlap. The returned function removes
// the listener; other listeners are unaffected.
func (c *Client) Subscribe(fn func(protocol.Inbound)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// SubscribeState registers a listener for connection state transitions,
// replacing any need to poll Connected.
func (c *Client) SubscribeState(fn func(connected bool)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.stateListeners = append(c.stateListeners, stateListener{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.stateListeners {
			if l.id == id {
				c.stateListeners = append(c.stateListeners[:i], c.stateListeners[i+1:]...)
				return
			}
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}

		msg, err := protocol.ParseInbound(data)
		if err != nil {
			// Malformed payloads are dropped; the connection stays open
			// and no listener hears about them.
			c.logger.Warn("dropping malformed inbound message", "err", err)
			continue
		}

		c.mu.Lock()
		ls := make([]listener, len(c.listeners))
		copy(ls, c.listeners)
		c.mu.Unlock()
		for _, l := range ls {
			l.fn(msg)
		}
	}
}

func (c *Client) handleClose(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// A stale read loop from a connection already replaced or torn
		// down by Disconnect. Nothing to do.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connected = false
	closing := c.closing
	c.mu.Unlock()

	_ = conn.Close()
	c.notifyState(false)

	if closing {
		return
	}
	c.logger.Warn("connection lost", "err", err)
	c.scheduleReconnect()
}

// scheduleReconnect arms the single reconnection timer. A second unexpected
// close while a timer is pending must not create a second timer.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing || c.connected || c.dialing || c.reconnectTimer != nil {
		return
	}
	c.reconnectTimer = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		closing := c.closing
		c.mu.Unlock()
		if !closing {
			c.Connect()
		}
	})
}

func (c *Client) cancelReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Client) notifyState(connected bool) {
	c.mu.Lock()
	ls := make([]stateListener, len(c.stateListeners))
	copy(ls, c.stateListeners)
	c.mu.Unlock()
	for _, l := range ls {
		l.fn(connected)
	}
}

func messageType(data []byte) string {
	// Best-effort tag extraction for the drop log.
	if m, err := protocol.ParseOutbound(data); err == nil {
		switch m.(type) {
		case protocol.Config:
			return protocol.TypeConfig
		case protocol.AudioChunk:
			return protocol.TypeAudioChunk
		case protocol.TextInput:
			return protocol.TypeTextInput
		case protocol.SwitchSpeaker:
			return protocol.TypeSwitchSpeaker
		case protocol.EndSession:
			return protocol.TypeEndSession
		}
	}
	return "unknown"
}
