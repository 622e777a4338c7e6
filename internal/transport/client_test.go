package transport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/dbrezina/medinter/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsServer accepts websocket connections and exposes them to the test.
type wsServer struct {
	srv   *httptest.Server
	conns chan *websocket.Conn

	mu       sync.Mutex
	received [][]byte
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{conns: make(chan *websocket.Conn, 8)}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.received = append(s.received, data)
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *wsServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("no websocket connection arrived")
		return nil
	}
}

func (s *wsServer) receivedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func newTestClient(url string, delay time.Duration) *Client {
	return New(Config{
		URL:            url,
		ReconnectDelay: delay,
		Logger:         log.New(io.Discard),
	})
}

func connectAndWait(t *testing.T, c *Client, s *wsServer) *websocket.Conn {
	t.Helper()
	c.Connect()
	conn := s.accept(t)
	waitFor(t, c.Connected, "client never reported connected")
	return conn
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func sendInbound(t *testing.T, conn *websocket.Conn, m protocol.Inbound) {
	t.Helper()
	data, err := protocol.MarshalInbound(m)
	if err != nil {
		t.Fatalf("MarshalInbound() error = %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("server write: %v", err)
	}
}

func TestClient_DeliversInArrivalOrder(t *testing.T) {
	s := newWSServer(t)
	c := newTestClient(s.url(), time.Hour)
	defer c.Disconnect()

	var mu sync.Mutex
	var got []string
	c.Subscribe(func(m protocol.Inbound) {
		p, ok := m.(protocol.PartialTranscript)
		if !ok {
			return
		}
		mu.Lock()
		got = append(got, p.Text)
		mu.Unlock()
	})

	conn := connectAndWait(t, c, s)
	for _, text := range []string{"a", "ab", "abc"} {
		sendInbound(t, conn, protocol.PartialTranscript{Text: text})
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, "messages did not arrive")

	mu.Lock()
	defer mu.Unlock()
	want := []string{"a", "ab", "abc"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClient_ListenerIsolation(t *testing.T) {
	s := newWSServer(t)
	c := newTestClient(s.url(), time.Hour)
	defer c.Disconnect()

	var mu sync.Mutex
	first, second := 0, 0
	unsubFirst := c.Subscribe(func(protocol.Inbound) {
		mu.Lock()
		first++
		mu.Unlock()
	})
	c.Subscribe(func(protocol.Inbound) {
		mu.Lock()
		second++
		mu.Unlock()
	})

	conn := connectAndWait(t, c, s)
	sendInbound(t, conn, protocol.PartialTranscript{Text: "one"})
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return second == 1
	}, "first message not delivered")

	unsubFirst()
	sendInbound(t, conn, protocol.PartialTranscript{Text: "two"})
	sendInbound(t, conn, protocol.PartialTranscript{Text: "three"})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return second == 3
	}, "second listener stopped receiving after first unsubscribed")

	mu.Lock()
	defer mu.Unlock()
	if first != 1 {
		t.Errorf("unsubscribed listener got %d messages, want 1", first)
	}
}

func TestClient_MalformedPayloadDropped(t *testing.T) {
	s := newWSServer(t)
	c := newTestClient(s.url(), time.Hour)
	defer c.Disconnect()

	var mu sync.Mutex
	var got []protocol.Inbound
	c.Subscribe(func(m protocol.Inbound) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	})

	conn := connectAndWait(t, c, s)
	if err := conn.WriteMessage(websocket.TextMessage, []byte("{{{ not json")); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"mystery"}`)); err != nil {
		t.Fatal(err)
	}
	sendInbound(t, conn, protocol.ConfigAck{SourceLang: "es-US", TargetLang: "en-US"})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, "valid message after malformed ones never arrived")

	if !c.Connected() {
		t.Error("connection should stay open after malformed payloads")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, ok := got[0].(protocol.ConfigAck); !ok {
		t.Errorf("got %T, want ConfigAck", got[0])
	}
}

func TestClient_SendWhileDisconnectedIsDropped(t *testing.T) {
	s := newWSServer(t)
	c := newTestClient(s.url(), time.Hour)
	defer c.Disconnect()

	// Not connected yet: must not panic, must not queue.
	c.Send(protocol.SwitchSpeaker{})

	conn := connectAndWait(t, c, s)
	_ = conn
	c.Send(protocol.EndSession{})
	waitFor(t, func() bool { return s.receivedCount() == 1 }, "post-connect send never arrived")

	if got := s.receivedCount(); got != 1 {
		t.Errorf("server received %d messages, want 1 (pre-connect send must be dropped, not queued)", got)
	}
}

func TestClient_ReconnectsOnceAfterUnexpectedClose(t *testing.T) {
	s := newWSServer(t)
	delay := 150 * time.Millisecond
	c := newTestClient(s.url(), delay)
	defer c.Disconnect()

	conn := connectAndWait(t, c, s)
	conn.Close() // unexpected close, server side

	waitFor(t, func() bool { return !c.Connected() }, "client never noticed the close")

	// No attempt may land before the fixed delay.
	select {
	case <-s.conns:
		t.Fatal("reconnect attempt before the delay elapsed")
	case <-time.After(delay / 2):
	}

	// Exactly one attempt after the delay.
	s.accept(t)
	waitFor(t, c.Connected, "client never reconnected")

	// The connection is stable again: no further dials.
	select {
	case <-s.conns:
		t.Fatal("second reconnect attempt despite an open connection")
	case <-time.After(2 * delay):
	}
}

func TestClient_DisconnectCancelsReconnect(t *testing.T) {
	s := newWSServer(t)
	delay := 100 * time.Millisecond
	c := newTestClient(s.url(), delay)

	conn := connectAndWait(t, c, s)
	conn.Close()
	waitFor(t, func() bool { return !c.Connected() }, "client never noticed the close")

	c.Disconnect()

	select {
	case <-s.conns:
		t.Fatal("reconnect attempt after explicit Disconnect")
	case <-time.After(3 * delay):
	}
}

func TestClient_StateListener(t *testing.T) {
	s := newWSServer(t)
	c := newTestClient(s.url(), time.Hour)

	var mu sync.Mutex
	var states []bool
	c.SubscribeState(func(connected bool) {
		mu.Lock()
		states = append(states, connected)
		mu.Unlock()
	})

	connectAndWait(t, c, s)
	c.Disconnect()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 2
	}, "state transitions not observed")

	mu.Lock()
	defer mu.Unlock()
	if !states[0] || states[1] {
		t.Errorf("states = %v, want [true false]", states)
	}
}

func TestClient_ConnectIsIdempotent(t *testing.T) {
	s := newWSServer(t)
	c := newTestClient(s.url(), time.Hour)
	defer c.Disconnect()

	connectAndWait(t, c, s)
	c.Connect()
	c.Connect()

	select {
	case <-s.conns:
		t.Fatal("Connect on an open connection dialed again")
	case <-time.After(100 * time.Millisecond):
	}
}
