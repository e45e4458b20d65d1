package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhook_PostsMessage(t *testing.T) {
	received := make(chan map[string]string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	wh := NewWebhook(server.URL, nil)
	wh.Notify("bought 0.5 SOL of TST")

	select {
	case body := <-received:
		if body["text"] != "bought 0.5 SOL of TST" {
			t.Errorf("text = %q, want the notification message", body["text"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never received the post")
	}
}

func TestWebhook_EmptyURLDisabled(t *testing.T) {
	wh := NewWebhook("", nil)
	// Must not panic or block.
	wh.Notify("dropped")
}

func TestNopNotifier(t *testing.T) {
	var n Nop
	n.Notify("ignored")
}
