package observability

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/health", 200, time.Millisecond)
	m.IncOrchestration("video_ready")
	m.TaskStarted()
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil write: %v", err)
	}
	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Fatalf("nil metrics status: want=503 got=%d", rec.Code)
	}
}

func TestMetricsExposition(t *testing.T) {
	m := New(time.Second)
	m.ObserveAPI("POST", "/webhook/kestra", 200, 30*time.Millisecond)
	m.ObserveProvider("veo", "video", errors.New("boom"), 2*time.Second)
	m.IncOrchestration("VIDEO_READY")
	m.IncOrchestration("video_ready")

	if got := m.OrchestrationCount("video_ready"); got != 2 {
		t.Fatalf("orchestrations: want=2 got=%v", got)
	}

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`autopilot_api_requests_total{method="POST",route="/webhook/kestra",status="200"} 1`,
		`autopilot_api_request_duration_seconds_bucket{method="POST",route="/webhook/kestra",le="0.05"} 1`,
		`autopilot_api_request_duration_seconds_bucket{method="POST",route="/webhook/kestra",le="0.025"} 0`,
		`autopilot_provider_requests_total{provider="veo",kind="video",status="error"} 1`,
		`autopilot_orchestrations_total{outcome="video_ready"} 2`,
		"# TYPE autopilot_tasks_active gauge",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestParseHeaders(t *testing.T) {
	h := ParseHeaders(" a=1 , bad, b = two ,c=")
	if len(h) != 2 || h["a"] != "1" || h["b"] != "two" {
		t.Fatalf("headers: got=%v", h)
	}
	if ParseHeaders("") != nil {
		t.Fatalf("empty headers must be nil")
	}
}
