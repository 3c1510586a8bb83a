package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

func TestNotifyPostsText(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	n := New(logger.Nop(), srv.URL)
	if err := n.Notify(context.Background(), "video ready"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got["text"] != "video ready" {
		t.Fatalf("text: want=%q got=%q", "video ready", got["text"])
	}
}

func TestNotifyDisabled(t *testing.T) {
	n := New(logger.Nop(), "")
	if n.Enabled() {
		t.Fatalf("empty webhook must disable the notifier")
	}
	if err := n.Notify(context.Background(), "x"); err != nil {
		t.Fatalf("disabled notify: %v", err)
	}
}
