package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestWebhookNotifierPostsAlert(t *testing.T) {
	var captured webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL)
	alert := IngestAlert{
		Granularity: "hour",
		Kind:        "fetch",
		Message:     "upstream timeout",
		WindowStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	if err := notifier.Notify(context.Background(), alert); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if captured.MsgType != "text" {
		t.Fatalf("unexpected msgtype %q", captured.MsgType)
	}
	for _, want := range []string{"Granularity: hour", "Kind: fetch", "upstream timeout"} {
		if !strings.Contains(captured.Text.Content, want) {
			t.Errorf("content missing %q: %s", want, captured.Text.Content)
		}
	}
}

func TestWebhookNotifierNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL)
	if err := notifier.Notify(context.Background(), IngestAlert{Granularity: "day"}); err == nil {
		t.Fatalf("expected error on non-2xx response")
	}
}

func TestWebhookNotifierEmptyURL(t *testing.T) {
	notifier := NewWebhookNotifier("")
	if err := notifier.Notify(context.Background(), IngestAlert{}); err == nil {
		t.Fatalf("expected error for empty url")
	}
}
