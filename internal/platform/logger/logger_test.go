package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yungbote/autopilot-backend/internal/platform/ctxutil"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"api_key", "sk-live-123",
		"Authorization", "Bearer abc",
		"user_email", "dev@example.com",
		"repo", "org/repo",
	})
	if len(out) != 8 {
		t.Fatalf("len: want=8 got=%d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("api_key: want=[REDACTED] got=%v", out[1])
	}
	if out[3] != "[REDACTED]" {
		t.Fatalf("authorization: want=[REDACTED] got=%v", out[3])
	}
	hashed, _ := out[5].(string)
	if len(hashed) != len("hash:")+12 || hashed[:5] != "hash:" {
		t.Fatalf("user_email: want hash got=%v", out[5])
	}
	if out[7] != "org/repo" {
		t.Fatalf("repo: want=org/repo got=%v", out[7])
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"repo", "a", "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("odd kv: got=%v", out)
	}
}

func TestSanitizeValueNestedMap(t *testing.T) {
	got := sanitizeValue("payload", map[string]interface{}{"githubToken": "ghp_x", "branch": "main"})
	m, ok := got.(map[string]interface{})
	if !ok {
		t.Fatalf("want map got=%T", got)
	}
	if m["githubToken"] != "[REDACTED]" || m["branch"] != "main" {
		t.Fatalf("nested: got=%v", m)
	}
}

func TestSanitizeKVsHyphenatedHeader(t *testing.T) {
	out := sanitizeKVs([]interface{}{"X-Goog-Api-Key", "g-123", "X-Webhook-Secret", "s"})
	if out[1] != "[REDACTED]" || out[3] != "[REDACTED]" {
		t.Fatalf("headers: got=%v", out)
	}
}

func TestWithContextAddsTraceFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	ctx := ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{TraceID: "t-1", RequestID: "r-1"})
	l.WithContext(ctx).Info("Webhook received", "run_id", "exec-1")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries: want=1 got=%d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["trace_id"] != "t-1" || fields["request_id"] != "r-1" || fields["run_id"] != "exec-1" {
		t.Fatalf("fields: got=%v", fields)
	}

	if got := l.WithContext(context.Background()); got != l {
		t.Fatalf("no trace data should return the same logger")
	}
}
