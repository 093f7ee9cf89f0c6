package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/edgecoap/internal/observability"
	"github.com/danmuck/edgecoap/internal/testutil/testlog"
)

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, req)
	return rr
}

func TestHealthAndStatus(t *testing.T) {
	testlog.Start(t)
	s := New("coapclient", ":0", nil, func() any {
		return map[string]any{"state": "acked", "attempts": 2}
	}, nil)

	rr := get(t, s, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	rr = get(t, s, "/status")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body struct {
		Service string         `json:"service"`
		Status  map[string]any `json:"status"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Service != "coapclient" || body.Status["state"] != "acked" {
		t.Fatalf("unexpected status body: %#v", body)
	}
}

func TestReadyReflectsProbe(t *testing.T) {
	testlog.Start(t)
	ready := false
	s := New("coapserver", ":0", nil, nil, func() bool { return ready })

	if rr := get(t, s, "/ready"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before ready, got %d", rr.Code)
	}
	ready = true
	if rr := get(t, s, "/ready"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 once ready, got %d", rr.Code)
	}
}

func TestMetricsExposesCoapSeries(t *testing.T) {
	testlog.Start(t)
	s := New("coapserver", ":0", nil, nil, nil)
	observability.RecordServerRequest("GET", "2.05", 0)

	rr := get(t, s, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "edgecoap_server_requests_total") {
		t.Fatalf("metrics output missing server series")
	}
}

func TestTokenGuardsStatusAndMetrics(t *testing.T) {
	testlog.Start(t)
	s := New("coapserver", ":0", nil, func() any { return "ok" }, nil, WithToken("s3cret"))

	if rr := get(t, s, "/health"); rr.Code != http.StatusOK {
		t.Fatalf("health should stay open, got %d", rr.Code)
	}
	for _, path := range []string{"/status", "/metrics"} {
		if rr := get(t, s, path); rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: expected 401, got %d", path, rr.Code)
		}
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer s3cret")
		rr := httptest.NewRecorder()
		s.HTTPRouter().ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s with token: expected 200, got %d", path, rr.Code)
		}
	}
}
