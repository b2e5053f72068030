package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/greatway/greatway/internal/core/domain"
)

func TestRequestLogger_LogsRenderedStatus(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		_ = c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	e.Use(RequestLogger(log))
	e.GET("/guarded", func(c echo.Context) error { return domain.ErrUnauthenticated })

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q", buf.String())
	}
	if entry["method"] != "GET" || entry["path"] != "/guarded" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if status, _ := entry["status"].(float64); int(status) != http.StatusUnauthorized {
		t.Fatalf("logged status %v", entry["status"])
	}
	if _, ok := entry["latency_ms"]; !ok {
		t.Fatalf("latency_ms missing: %v", entry)
	}
}
