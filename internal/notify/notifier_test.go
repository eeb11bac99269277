package notify

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
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSender struct {
	name   string
	err    error
	titles []string
}

func (f *fakeSender) Send(ctx context.Context, title, message string) error {
	f.titles = append(f.titles, title)
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func TestNotifyFansOutToAllSenders(t *testing.T) {
	a := &fakeSender{name: "a"}
	b := &fakeSender{name: "b"}
	n := NewNotifier([]Sender{a, b}, nil, discardLogger())

	if err := n.Notify(context.Background(), EventPositionOpened, "Opened", "details"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(a.titles) != 1 || len(b.titles) != 1 {
		t.Errorf("deliveries = %d/%d, want 1/1", len(a.titles), len(b.titles))
	}
}

func TestNotifyEventFilter(t *testing.T) {
	s := &fakeSender{name: "a"}
	n := NewNotifier([]Sender{s}, []string{EventPositionClosed, EventError}, discardLogger())

	if err := n.Notify(context.Background(), EventPositionOpened, "Opened", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.titles) != 0 {
		t.Error("filtered event was delivered")
	}

	if err := n.Notify(context.Background(), EventPositionClosed, "Closed", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.titles) != 1 {
		t.Error("allowed event was not delivered")
	}
}

func TestNotifySenderFailureDoesNotBlockOthers(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("webhook 500")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.Notify(context.Background(), EventError, "Error", "m")
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("err = %v, want named sender failure", err)
	}
	if len(good.titles) != 1 {
		t.Error("healthy sender skipped after a peer failed")
	}
}

func TestNotifyNoSenders(t *testing.T) {
	n := NewNotifier(nil, nil, discardLogger())
	if err := n.Notify(context.Background(), EventError, "Error", "m"); err != nil {
		t.Fatalf("Notify with no senders: %v", err)
	}
}

func TestTelegramSender(t *testing.T) {
	var got struct {
		ChatID    string `json:"chat_id"`
		Text      string `json:"text"`
		ParseMode string `json:"parse_mode"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := NewTelegramSender("token123", "chat42")
	s.baseURL = srv.URL

	if err := s.Send(context.Background(), "Position opened", "bought TOKA"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.ChatID != "chat42" {
		t.Errorf("chat_id = %q", got.ChatID)
	}
	if !strings.Contains(got.Text, "Position opened") || !strings.Contains(got.Text, "bought TOKA") {
		t.Errorf("text = %q", got.Text)
	}
}

func TestDiscordSender(t *testing.T) {
	var got struct {
		Content string `json:"content"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	if err := s.Send(context.Background(), "Position closed", "sold TOKA"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(got.Content, "Position closed") || !strings.Contains(got.Content, "sold TOKA") {
		t.Errorf("content = %q", got.Content)
	}
}

func TestDiscordSenderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	if err := s.Send(context.Background(), "t", "m"); err == nil {
		t.Fatal("expected error on HTTP 429")
	}
}
