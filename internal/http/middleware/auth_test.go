package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/autopilot-backend/internal/platform/ctxutil"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
	"github.com/yungbote/autopilot-backend/internal/services"
)

func newAuthRouter(auth services.OperatorAuth) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/tasks", NewAuthMiddleware(logger.Nop(), auth).RequireAuth(), func(c *gin.Context) {
		caller := ctxutil.GetCaller(c.Request.Context())
		c.String(http.StatusOK, caller.Email)
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	auth := services.NewOperatorAuth(logger.Nop(), "k")
	tok, err := auth.Issue("ops@acme.io", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	r := newAuthRouter(auth)

	cases := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer nope", http.StatusUnauthorized},
		{"Basic " + tok, http.StatusUnauthorized},
		{"Bearer " + tok, http.StatusOK},
		{"bearer " + tok, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%q: want=%d got=%d", tc.header, tc.want, rec.Code)
		}
		if tc.want == http.StatusOK && rec.Body.String() != "ops@acme.io" {
			t.Fatalf("caller: got=%q", rec.Body.String())
		}
	}
}

func TestRequireAuthWithoutSecret(t *testing.T) {
	r := newAuthRouter(services.NewOperatorAuth(logger.Nop(), ""))
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: want=%d got=%d", http.StatusServiceUnavailable, rec.Code)
	}
}

func TestWebhookSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		secret string
		header string
		want   int
	}{
		{"", "", http.StatusNoContent},
		{"hook", "", http.StatusUnauthorized},
		{"hook", "wrong", http.StatusUnauthorized},
		{"hook", "hook", http.StatusNoContent},
	}
	for _, tc := range cases {
		r := gin.New()
		r.POST("/webhook/kestra", WebhookSecret(tc.secret), func(c *gin.Context) { c.Status(http.StatusNoContent) })
		req := httptest.NewRequest(http.MethodPost, "/webhook/kestra", nil)
		if tc.header != "" {
			req.Header.Set(headerWebhookSecret, tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("secret=%q header=%q: want=%d got=%d", tc.secret, tc.header, tc.want, rec.Code)
		}
	}
}

func TestAttachTraceContextEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	var seen *ctxutil.TraceData
	r.GET("/", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerRequestID, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Header().Get(headerRequestID) != "req-1" {
		t.Fatalf("request id header: got=%q", rec.Header().Get(headerRequestID))
	}
	if seen == nil || seen.RequestID != "req-1" || seen.TraceID == "" {
		t.Fatalf("trace data: got=%+v", seen)
	}
	if rec.Header().Get(headerTraceID) != seen.TraceID {
		t.Fatalf("trace id header mismatch")
	}
}
