package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/atelierhq/realtime/internal/protocol"
)

// pollHandshake answers POST /poll with a fixed session ID.
func pollHandshake(t *testing.T, mux *http.ServeMux, session string) {
	mux.HandleFunc("/poll", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sessionId":"` + session + `"}`))
	})
}

func TestLongPoll_HandshakeAndReceive(t *testing.T) {
	var mu sync.Mutex
	var polls int
	var gotAuth, gotSession string

	batch := `[` +
		`{"event":"chat-message","data":{"id":"m1","projectId":"p1","senderId":"u1","message":"one","type":"text","createdAt":"2025-11-03T09:00:00Z"}},` +
		`{"event":"user-typing","data":{"userId":"u2","projectId":"p1"}}` +
		`]`

	mux := http.NewServeMux()
	mux.HandleFunc("/poll", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sessionId":"sess-9"}`))
	})
	mux.HandleFunc("/poll/events", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		polls++
		n := polls
		gotSession = r.URL.Query().Get("session")
		mu.Unlock()

		if n == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(batch))
			return
		}
		// Hold like a real long-poll server, then heartbeat
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusNoContent)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	tr, err := DialLongPoll(context.Background(), server.URL, "tok-lp", testOptions(), slog.Default())
	if err != nil {
		t.Fatalf("DialLongPoll failed: %v", err)
	}
	defer tr.Close()

	if tr.Mode() != ModeLongPoll {
		t.Errorf("Mode = %q, want %q", tr.Mode(), ModeLongPoll)
	}

	want := []string{protocol.EventChatMessage, protocol.EventUserTyping}
	for i, wantEvent := range want {
		select {
		case env := <-tr.Messages():
			if env.Event != wantEvent {
				t.Errorf("event %d = %q, want %q", i, env.Event, wantEvent)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for event %d of %d", i+1, len(want))
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if gotAuth != "Bearer tok-lp" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok-lp")
	}
	if gotSession != "sess-9" {
		t.Errorf("session = %q, want sess-9", gotSession)
	}
}

func TestLongPoll_Send(t *testing.T) {
	var mu sync.Mutex
	var sentBody []byte
	var sentSession string

	mux := http.NewServeMux()
	pollHandshake(t, mux, "sess-1")
	mux.HandleFunc("/poll/events", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/poll/send", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		sentBody = body
		sentSession = r.URL.Query().Get("session")
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	tr, err := DialLongPoll(context.Background(), server.URL, "tok", testOptions(), slog.Default())
	if err != nil {
		t.Fatalf("DialLongPoll failed: %v", err)
	}
	defer tr.Close()

	env, _ := protocol.NewEnvelope(protocol.EventJoinProject, "proj-3")
	if err := tr.Send(env); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := `{"event":"join-project","data":"proj-3"}`
	if string(sentBody) != want {
		t.Errorf("sent body = %q, want %q", sentBody, want)
	}
	if sentSession != "sess-1" {
		t.Errorf("session = %q, want sess-1", sentSession)
	}
}

func TestLongPoll_ServerGone(t *testing.T) {
	mux := http.NewServeMux()
	pollHandshake(t, mux, "sess-2")
	mux.HandleFunc("/poll/events", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	tr, err := DialLongPoll(context.Background(), server.URL, "tok", testOptions(), slog.Default())
	if err != nil {
		t.Fatalf("DialLongPoll failed: %v", err)
	}
	defer tr.Close()

	select {
	case d := <-tr.Closed():
		if d.Reason != ReasonServerClose {
			t.Errorf("Reason = %q, want %q", d.Reason, ReasonServerClose)
		}
		if !d.ServerInitiated() {
			t.Error("410 should read as server initiated")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for disconnect")
	}
}

func TestLongPoll_FaultAfterRetries(t *testing.T) {
	var mu sync.Mutex
	var polls int

	mux := http.NewServeMux()
	pollHandshake(t, mux, "sess-3")
	mux.HandleFunc("/poll/events", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		polls++
		mu.Unlock()
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	opts := testOptions()
	opts.PollRetryLimit = 2
	opts.PollRetryDelay = 10 * time.Millisecond

	tr, err := DialLongPoll(context.Background(), server.URL, "tok", opts, slog.Default())
	if err != nil {
		t.Fatalf("DialLongPoll failed: %v", err)
	}
	defer tr.Close()

	select {
	case d := <-tr.Closed():
		if d.Reason != ReasonTransportClose {
			t.Errorf("Reason = %q, want %q", d.Reason, ReasonTransportClose)
		}
		if d.Err == nil {
			t.Error("expected underlying error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for disconnect")
	}

	mu.Lock()
	defer mu.Unlock()
	if polls != 2 {
		t.Errorf("polls = %d, want 2", polls)
	}
}

func TestDialLongPoll_AuthRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/poll", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	_, err := DialLongPoll(context.Background(), server.URL, "bad", testOptions(), slog.Default())
	if err == nil {
		t.Fatal("expected handshake error")
	}
	if !errors.Is(err, ErrAuthRejected) {
		t.Errorf("error = %v, want ErrAuthRejected", err)
	}
}
