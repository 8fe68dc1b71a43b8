package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"MexcPulse/internal/engine"
	"MexcPulse/internal/metrics"
	"MexcPulse/internal/model"
)

type fixedStatus engine.Status

func (f fixedStatus) Status() engine.Status { return engine.Status(f) }

func newTestServer() *Server {
	reg := prometheus.NewRegistry()
	metrics.New(reg).RecordEvent("activated")
	st := fixedStatus{Running: true, Mode: model.ModeMonitoring, Active: []string{"BTC"}, Watchlist: 3}
	return New(":0", st, reg, zerolog.Nop())
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestEndpoints(t *testing.T) {
	s := newTestServer()
	tests := []struct {
		path string
		want string
	}{
		{"/", "MexcPulse is running"},
		{"/health", `"status":"ok"`},
		{"/status", `"mode":"monitoring"`},
		{"/metrics", "mexcpulse_engine_events_total"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(s, tt.path)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Fatalf("body %q does not contain %q", rec.Body.String(), tt.want)
			}
		})
	}
}

func TestUnknownPath(t *testing.T) {
	if rec := get(newTestServer(), "/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
