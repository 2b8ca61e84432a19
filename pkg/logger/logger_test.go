package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestFromFallsBackToDefault(t *testing.T) {
	if From(context.Background()) != slog.Default() {
		t.Fatalf("expected default logger")
	}
	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	if From(With(context.Background(), l)) != l {
		t.Fatalf("expected stored logger")
	}
}

func TestMiddlewareScopesRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(Middleware(base))
	r.GET("/x", func(c *gin.Context) {
		if From(c.Request.Context()) != FromGin(c) {
			t.Errorf("request context and gin context loggers differ")
		}
		FromGin(c).Info("inside")
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x?callSid=CA1", nil)
	req.Header.Set("X-Request-Id", "rid-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("X-Request-Id") != "rid-1" {
		t.Fatalf("request id must be echoed")
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected handler line plus summary, got %q", buf.String())
	}
	var summary map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &summary); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary["request_id"] != "rid-1" || summary["call_sid"] != "CA1" || summary["status"] != float64(204) {
		t.Fatalf("unexpected summary %v", summary)
	}
}
