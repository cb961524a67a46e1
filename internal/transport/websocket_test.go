package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atelierhq/realtime/internal/protocol"
)

// mockServer creates a test server upgrading WebSocket connections on /ws.
func mockServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	})

	return httptest.NewServer(mux)
}

func testOptions() Options {
	return Options{
		HandshakeTimeout: 2 * time.Second,
		PingInterval:     10 * time.Second,
		PingTimeout:      30 * time.Second,
		WriteTimeout:     2 * time.Second,
		PollTimeout:      time.Second,
		PollRetryLimit:   3,
		PollRetryDelay:   20 * time.Millisecond,
		BufferSize:       16,
	}
}

func TestDialWebSocket_SendsBearerToken(t *testing.T) {
	var mu sync.Mutex
	var gotAuth string

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tr, err := DialWebSocket(context.Background(), server.URL, "tok-abc", testOptions(), slog.Default())
	if err != nil {
		t.Fatalf("DialWebSocket failed: %v", err)
	}
	defer tr.Close()

	mu.Lock()
	auth := gotAuth
	mu.Unlock()

	if auth != "Bearer tok-abc" {
		t.Errorf("Authorization = %q, want %q", auth, "Bearer tok-abc")
	}
	if tr.Mode() != ModeWebSocket {
		t.Errorf("Mode = %q, want %q", tr.Mode(), ModeWebSocket)
	}
}

func TestDialWebSocket_AuthRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	_, err := DialWebSocket(context.Background(), server.URL, "bad", testOptions(), slog.Default())
	if err == nil {
		t.Fatal("expected dial error")
	}
	if !errors.Is(err, ErrAuthRejected) {
		t.Errorf("error = %v, want ErrAuthRejected", err)
	}
}

func TestWSTransport_ReceiveEnvelopes(t *testing.T) {
	frames := []string{
		`{"event":"chat-message","data":{"id":"m1","projectId":"p1","senderId":"u1","message":"one","type":"text","createdAt":"2025-11-03T09:00:00Z"}}`,
		`{"event":"user-typing","data":{"userId":"u2","projectId":"p1"}}`,
		`{"event":"user-presence","data":{"userId":"u2","projectId":"p1","status":"online","timestamp":"2025-11-03T09:00:01Z"}}`,
	}

	server := mockServer(t, func(conn *websocket.Conn) {
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Keep connection open
		time.Sleep(time.Second)
	})
	defer server.Close()

	tr, err := DialWebSocket(context.Background(), server.URL, "tok", testOptions(), slog.Default())
	if err != nil {
		t.Fatalf("DialWebSocket failed: %v", err)
	}
	defer tr.Close()

	want := []string{protocol.EventChatMessage, protocol.EventUserTyping, protocol.EventUserPresence}
	timeout := time.After(time.Second)

	for i, wantEvent := range want {
		select {
		case env := <-tr.Messages():
			if env.Event != wantEvent {
				t.Errorf("event %d = %q, want %q", i, env.Event, wantEvent)
			}
		case <-timeout:
			t.Fatalf("timeout waiting for event %d of %d", i+1, len(want))
		}
	}
}

func TestWSTransport_Send(t *testing.T) {
	var mu sync.Mutex
	var received []byte

	server := mockServer(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			mu.Lock()
			received = msg
			mu.Unlock()
		}
	})
	defer server.Close()

	tr, err := DialWebSocket(context.Background(), server.URL, "tok", testOptions(), slog.Default())
	if err != nil {
		t.Fatalf("DialWebSocket failed: %v", err)
	}
	defer tr.Close()

	env, err := protocol.NewEnvelope(protocol.EventTypingStart, protocol.ProjectRef{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	if err := tr.Send(env); err != nil {
		t.Errorf("Send failed: %v", err)
	}

	// Wait for frame to be received
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	want := `{"event":"typing-start","data":{"projectId":"p1"}}`
	if string(received) != want {
		t.Errorf("received %q, want %q", received, want)
	}
}

func TestWSTransport_ServerClose(t *testing.T) {
	server := mockServer(t, func(conn *websocket.Conn) {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
			time.Now().Add(time.Second),
		)
		// Wait for the close response
		conn.ReadMessage()
	})
	defer server.Close()

	tr, err := DialWebSocket(context.Background(), server.URL, "tok", testOptions(), slog.Default())
	if err != nil {
		t.Fatalf("DialWebSocket failed: %v", err)
	}
	defer tr.Close()

	select {
	case d := <-tr.Closed():
		if d.Reason != ReasonServerClose {
			t.Errorf("Reason = %q, want %q", d.Reason, ReasonServerClose)
		}
		if !d.ServerInitiated() {
			t.Error("normal close frame should read as server initiated")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for disconnect")
	}
}

func TestWSTransport_AbruptDrop(t *testing.T) {
	server := mockServer(t, func(conn *websocket.Conn) {
		// Kill the TCP connection without a close frame
		conn.UnderlyingConn().Close()
	})
	defer server.Close()

	tr, err := DialWebSocket(context.Background(), server.URL, "tok", testOptions(), slog.Default())
	if err != nil {
		t.Fatalf("DialWebSocket failed: %v", err)
	}
	defer tr.Close()

	select {
	case d := <-tr.Closed():
		if d.Reason != ReasonTransportClose {
			t.Errorf("Reason = %q, want %q", d.Reason, ReasonTransportClose)
		}
		if d.ServerInitiated() {
			t.Error("abrupt drop should not read as server initiated")
		}
		if d.Err == nil {
			t.Error("expected underlying error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for disconnect")
	}
}

func TestWSTransport_LocalClose(t *testing.T) {
	server := mockServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	tr, err := DialWebSocket(context.Background(), server.URL, "tok", testOptions(), slog.Default())
	if err != nil {
		t.Fatalf("DialWebSocket failed: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	select {
	case d := <-tr.Closed():
		if d.Reason != ReasonClientClose {
			t.Errorf("Reason = %q, want %q", d.Reason, ReasonClientClose)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for close notice")
	}

	env, _ := protocol.NewEnvelope(protocol.EventTypingStop, protocol.ProjectRef{ProjectID: "p1"})
	if err := tr.Send(env); err != ErrAlreadyClosed {
		t.Errorf("Send after Close = %v, want ErrAlreadyClosed", err)
	}
}

func TestWSTransport_MalformedFrameSkipped(t *testing.T) {
	server := mockServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"user-typing","data":{"userId":"u1","projectId":"p1"}}`))
		time.Sleep(time.Second)
	})
	defer server.Close()

	tr, err := DialWebSocket(context.Background(), server.URL, "tok", testOptions(), slog.Default())
	if err != nil {
		t.Fatalf("DialWebSocket failed: %v", err)
	}
	defer tr.Close()

	select {
	case env := <-tr.Messages():
		if env.Event != protocol.EventUserTyping {
			t.Errorf("event = %q, want %q", env.Event, protocol.EventUserTyping)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for the valid frame")
	}
}

func TestWSTransport_StaleSession(t *testing.T) {
	// Server never reads, so client pings are never answered
	server := mockServer(t, func(conn *websocket.Conn) {
		time.Sleep(2 * time.Second)
	})
	defer server.Close()

	opts := testOptions()
	opts.PingInterval = 20 * time.Millisecond
	opts.PingTimeout = 60 * time.Millisecond

	tr, err := DialWebSocket(context.Background(), server.URL, "tok", opts, slog.Default())
	if err != nil {
		t.Fatalf("DialWebSocket failed: %v", err)
	}
	defer tr.Close()

	select {
	case d := <-tr.Closed():
		if d.Reason != ReasonPingTimeout {
			t.Errorf("Reason = %q, want %q", d.Reason, ReasonPingTimeout)
		}
		if !errors.Is(d.Err, ErrStaleSession) {
			t.Errorf("Err = %v, want ErrStaleSession", d.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for stale detection")
	}
}
