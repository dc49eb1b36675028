package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shaiso/Quanta/internal/telemetry"
)

func TestLoggingInjectsRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var inner http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
		// хендлер логирует через request-scoped логгер из контекста
		telemetry.FromContext(r.Context()).Info("from handler")
		w.WriteHeader(http.StatusTeapot)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	rec := httptest.NewRecorder()
	Logging(logger)(inner).ServeHTTP(rec, req)

	out := buf.String()
	if !strings.Contains(out, "from handler") {
		t.Fatalf("handler log missing from output: %q", out)
	}
	if !strings.Contains(out, "path=/api/v1/tasks") {
		t.Errorf("handler log should carry the request path: %q", out)
	}
	if !strings.Contains(out, "status=418") {
		t.Errorf("request log should capture the response status: %q", out)
	}
}

func TestRecoveryConvertsPanic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	var inner http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	rec := httptest.NewRecorder()
	Recovery(logger)(inner).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
