package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_CountsRequests(t *testing.T) {
	m := NewCollector("hospital")
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/poly/:id", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for i := 0; i < 3; i++ {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/poly/abc", nil))
	}

	got := testutil.ToFloat64(m.requestsTotal.WithLabelValues(http.MethodGet, "/poly/:id", "200"))
	if got != 3 {
		t.Errorf("expected 3 requests, got %v", got)
	}
}

func TestCounters(t *testing.T) {
	m := NewCollector("hospital")
	m.AuthAttempt("success")
	m.AuthAttempt("invalid_credentials")
	m.AuthAttempt("invalid_credentials")
	m.EntryCreated("lab_report")

	if v := testutil.ToFloat64(m.authAttempts.WithLabelValues("invalid_credentials")); v != 2 {
		t.Errorf("expected 2 failed attempts, got %v", v)
	}
	if v := testutil.ToFloat64(m.recordsCreated.WithLabelValues("lab_report")); v != 1 {
		t.Errorf("expected 1 lab report, got %v", v)
	}
}

func TestHandler_Exposition(t *testing.T) {
	m := NewCollector("hospital")
	m.AuthAttempt("success")

	e := echo.New()
	e.GET("/metrics", m.Handler())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "hospital_auth_attempts_total") {
		t.Error("expected auth counter in exposition output")
	}
}
