package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIsTransportError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"status", &StatusError{StatusCode: 502}, false},
		{"wrapped status", fmt.Errorf("fetch: %w", &StatusError{StatusCode: 500}), false},
		{"canceled", context.Canceled, false},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := IsTransportError(tc.err); got != tc.want {
			t.Fatalf("%s: want=%v got=%v", tc.name, tc.want, got)
		}
	}
}

func TestIsTransportErrorDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, _, err := Do(context.Background(), &http.Client{Timeout: time.Second}, http.MethodGet, addr, nil, nil)
	if err == nil {
		t.Fatalf("expected dial error")
	}
	if !IsTransportError(err) {
		t.Fatalf("dial error should be transport: %v", err)
	}
}

func TestDoJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Key") != "k" {
			t.Errorf("header: want=k got=%q", r.Header.Get("X-Key"))
		}
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	err := DoJSON(context.Background(), srv.Client(), http.MethodPost, srv.URL, map[string]string{"X-Key": "k"}, map[string]string{"a": "b"}, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("want StatusError got=%v", err)
	}
	if se.HTTPStatusCode() != http.StatusTooManyRequests {
		t.Fatalf("status: want=429 got=%d", se.HTTPStatusCode())
	}
	if !IsRetryableError(err) {
		t.Fatalf("429 should be retryable")
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("bytes"))
	}))
	defer srv.Close()

	b, ct, err := Download(context.Background(), srv.Client(), srv.URL, nil)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(b) != "bytes" || ct != "video/mp4" {
		t.Fatalf("download: got body=%q ct=%q", b, ct)
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"30"}}}
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("capped: want=10s got=%s", got)
	}
	if got := RetryAfterDuration(nil, time.Second, 0); got != time.Second {
		t.Fatalf("fallback: want=1s got=%s", got)
	}
}
