package metrics

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func withGlobal(t *testing.T) *Metrics {
	t.Helper()
	m := New()
	SetGlobal(m)
	t.Cleanup(func() { SetGlobal(nil) })
	return m
}

func TestNew(t *testing.T) {
	m := New()
	if m.Registry() == nil {
		t.Fatal("Registry() returned nil")
	}

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) == 0 {
		t.Error("no metric families registered")
	}
}

func TestHelpers_NoGlobal(t *testing.T) {
	SetGlobal(nil)

	// must not panic without a registry
	IncDocumentsGenerated("html", "SPORT")
	IncPreviews()
	ObserveUpstream("imgbb", time.Now(), nil)
	SetTemplatesStored(3)
	IncAPIErrors("bad_request")
}

func TestHelpers(t *testing.T) {
	m := withGlobal(t)

	IncDocumentsGenerated("html", "SPORT")
	IncDocumentsGenerated("html", "SPORT")
	IncDocumentsGenerated("brief", "CASINO")
	IncPreviews()
	ObserveUpstream("imgbb", time.Now(), nil)
	ObserveUpstream("webhook", time.Now(), errors.New("502"))
	SetTemplatesStored(5)
	IncAPIErrors("bad_request")

	if got := testutil.ToFloat64(m.DocumentsGeneratedTotal.WithLabelValues("html", "SPORT")); got != 2 {
		t.Errorf("documents html/SPORT = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.PreviewsTotal); got != 1 {
		t.Errorf("previews = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.UpstreamCallsTotal.WithLabelValues("imgbb", ResultOK)); got != 1 {
		t.Errorf("imgbb ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.UpstreamCallsTotal.WithLabelValues("webhook", ResultError)); got != 1 {
		t.Errorf("webhook error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TemplatesStored); got != 5 {
		t.Errorf("templates stored = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.APIErrorsTotal.WithLabelValues("bad_request")); got != 1 {
		t.Errorf("api errors = %v, want 1", got)
	}
}

func TestHTTPMiddleware(t *testing.T) {
	m := withGlobal(t)

	r := chi.NewRouter()
	r.Use(HTTPMiddleware)
	r.Get("/api/v1/templates/{type}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Post("/api/v1/preview", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	for _, path := range []string{"/api/v1/templates/sport", "/api/v1/templates/bingo"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/preview", nil))

	if got := testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues("GET", "/api/v1/templates/{type}", "404")); got != 2 {
		t.Errorf("templates requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues("POST", "/api/v1/preview", "200")); got != 1 {
		t.Errorf("preview requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.APIErrorsTotal.WithLabelValues("not_found")); got != 2 {
		t.Errorf("not_found errors = %v, want 2", got)
	}
}

func TestCategorizeStatus(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{400, "bad_request"},
		{401, "auth_error"},
		{403, "auth_error"},
		{404, "not_found"},
		{405, "method_not_allowed"},
		{413, "too_large"},
		{422, "client_error"},
		{429, "rate_limited"},
		{500, "server_error"},
		{502, "upstream_error"},
		{200, "unknown"},
	}

	for _, tt := range tests {
		if got := categorizeStatus(tt.status); got != tt.want {
			t.Errorf("categorizeStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestServer_Handler(t *testing.T) {
	m := New()
	m.PreviewsTotal.Inc()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := NewServer(m, "", "", []string{"10.0.0.0/8"}, logger)
	h := s.Handler()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "10.1.1.1:4000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "campaign_previews_total 1") {
		t.Error("metrics output missing campaign_previews_total")
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "192.168.1.1:4000"
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("metrics from outside status = %d, want 403", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "192.168.1.1:4000"
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
}
