package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhookNotifier_Posts(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer relay-token" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, "relay-token", time.Second)
	err := n.NotifyMatch(context.Background(), "u1@example.com", Summary{MatchID: "m1", Side: "lost"})
	if err != nil {
		t.Fatalf("NotifyMatch: %v", err)
	}
	if got.To != "u1@example.com" || got.Event != "match.created" || got.Match.MatchID != "m1" {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, "", time.Second)
	if err := n.NotifyMatch(context.Background(), "u1@example.com", Summary{}); err == nil {
		t.Fatal("expected an error for a 502 response")
	}
}
