package caseapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/goleak"

	"github.com/dwizi/rescue-console/internal/rescue"
)

type fakeLink struct {
	events chan bool
}

func (f *fakeLink) GoOnline()  { f.events <- true }
func (f *fakeLink) GoOffline() { f.events <- false }

func waitEvent(t *testing.T, link *fakeLink, want bool) {
	t.Helper()
	select {
	case got := <-link.events:
		if got != want {
			t.Fatalf("expected online=%v, got %v", want, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for online=%v", want)
	}
}

func newCaseServer(t *testing.T, issued uuid.UUID) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := response{ID: req.ID}
			switch req.Action {
			case ActionCreateRescue:
				resp.Data, _ = json.Marshal(map[string]any{"id": issued})
			case ActionUpdateRescue:
				var record rescue.Record
				_ = json.Unmarshal(req.Data, &record)
				if record.Client == "broken" {
					resp.Error = &remoteError{Code: 422, Message: "client rejected"}
				}
			case ActionDeleteRescue:
			default:
				resp.Error = &remoteError{Code: 400, Message: "unknown action"}
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
}

func TestClientRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	issued := uuid.New()
	server := newCaseServer(t, issued)
	defer server.Close()

	client := New(Config{
		URL:        "ws" + strings.TrimPrefix(server.URL, "http"),
		Token:      "secret",
		Timeout:    2 * time.Second,
		RetryDelay: 10 * time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	link := &fakeLink{events: make(chan bool, 4)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Start(ctx, link) }()
	waitEvent(t, link, true)

	record := rescue.New(rescue.Params{Client: "alice"}).Record()
	id, err := client.CreateRescue(ctx, record)
	if err != nil {
		t.Fatalf("create rescue: %v", err)
	}
	if id != issued {
		t.Fatalf("expected issued id %s, got %s", issued, id)
	}
	if err := client.UpdateRescue(ctx, record); err != nil {
		t.Fatalf("update rescue: %v", err)
	}
	broken := rescue.New(rescue.Params{Client: "broken"}).Record()
	if err := client.UpdateRescue(ctx, broken); !errors.Is(err, ErrRemote) {
		t.Fatalf("expected ErrRemote, got %v", err)
	}
	if err := client.RemoveRescue(ctx, record); err != nil {
		t.Fatalf("remove rescue: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop")
	}
	waitEvent(t, link, false)
	if client.Connected() {
		t.Fatal("expected client disconnected")
	}
}

func TestClientRequiresSession(t *testing.T) {
	client := New(Config{URL: "ws://127.0.0.1:1"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := client.CreateRescue(context.Background(), rescue.Record{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestDisabledClientWaitsForShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	client := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if client.Enabled() {
		t.Fatal("expected client without url to be disabled")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := client.Start(ctx, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
}
