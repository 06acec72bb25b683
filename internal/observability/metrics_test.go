package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/ircterm/internal/testutil/testlog"
	"github.com/rs/zerolog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("ircterm", "GET", "/healthz", 200, 12*time.Millisecond)
	RecordLine("in", "PRIVMSG")
	RecordAnomaly("truncated")
	RecordConnectAttempt("irc.example.net:6697", true)
	RecordReconnectDelay(2 * time.Second)
	RecordEvent("MessageReceived")
	SetSendQueueDepth(3)
}

func TestDebugServerRoutes(t *testing.T) {
	testlog.Start(t)
	healthy := false
	srv := NewDebugServer("127.0.0.1:0", nil, zerolog.Nop(),
		func() any { return map[string]string{"nick": "alice"} },
		func() bool { return healthy },
	)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("healthz while disconnected: got=%d", rec.Code)
	}
	healthy = true
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz while connected: got=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if body["nick"] != "alice" {
		t.Fatalf("unexpected state body: %v", body)
	}

	RecordLine("out", "NICK")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "ircterm_irc_lines_total") {
		t.Fatalf("metrics output missing irc counters")
	}
}

func TestDebugServerCORS(t *testing.T) {
	testlog.Start(t)
	srv := NewDebugServer("127.0.0.1:0", []string{"http://localhost:3000/", "ftp://nope"}, zerolog.Nop(), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: got=%d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("unexpected allow-origin header: %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("disallowed origin should be rejected: got=%d", rec.Code)
	}
}

func TestDebugServerLabelsUnknownPathsByRoute(t *testing.T) {
	testlog.Start(t)
	h := NewDebugServer("127.0.0.1:0", nil, zerolog.Nop(), nil, nil).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scan-a1b2c3", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown path: got=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `route="unmatched"`) {
		t.Fatalf("unknown path should be labelled unmatched")
	}
	if strings.Contains(body, "a1b2c3") {
		t.Fatalf("raw path leaked into metric labels")
	}
	if !strings.Contains(body, `app="ircterm"`) {
		t.Fatalf("http metrics missing app label")
	}
}
