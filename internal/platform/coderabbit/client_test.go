package coderabbit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/httpx"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
	"github.com/yungbote/autopilot-backend/internal/platform/retry"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestClient(baseURL, key string) *Client {
	return New(logger.Nop(), Config{
		APIKey:  key,
		BaseURL: baseURL,
		Retry:   retry.Policy{MaxRetries: 3, BackoffFactor: 2, Sleep: noSleep},
		Now:     func() time.Time { return time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC) },
	})
}

func TestFetchSendsWindowedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/report.generate" {
			t.Errorf("path: got=%q", r.URL.Path)
		}
		if got := r.Header.Get("x-coderabbitai-api-key"); got != "cr-key" {
			t.Errorf("key header: got=%q", got)
		}
		var body reportRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Repository != "https://github.com/acme/api" || body.From != "2025-03-01" || body.To != "2025-03-15" {
			t.Errorf("body: got=%+v", body)
		}
		_, _ = w.Write([]byte(`{"summary":"3 bugs fixed","prs":[1,2]}`))
	}))
	defer srv.Close()

	ins, err := newTestClient(srv.URL, "cr-key").Fetch(context.Background(), "https://github.com/acme/api")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if ins["summary"] != "3 bugs fixed" {
		t.Fatalf("insights: got=%v", ins)
	}
}

func TestFetchRequiresKey(t *testing.T) {
	_, err := newTestClient("http://unused", "").Fetch(context.Background(), "repo")
	if !errors.Is(err, apierr.ErrConfig) {
		t.Fatalf("want ErrConfig got=%v", err)
	}
}

func TestFetchDoesNotRetryStatusErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "k").Fetch(context.Background(), "repo")
	var se *httpx.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
		t.Fatalf("want 502 StatusError got=%v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls: want=1 got=%d", n)
	}
}

func TestFetchRetriesTransportErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Errorf("hijack unsupported")
				return
			}
			conn, _, _ := hj.Hijack()
			_ = conn.Close()
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ins, err := newTestClient(srv.URL, "k").Fetch(context.Background(), "repo")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if ins["ok"] != true {
		t.Fatalf("insights: got=%v", ins)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("calls: want=3 got=%d", n)
	}
}
