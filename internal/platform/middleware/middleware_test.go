package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/hospital/internal/platform/apperr"
	"github.com/ehr/hospital/internal/platform/auth"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	h := RequestID()(func(c echo.Context) error {
		if rid, _ := c.Get("request_id").(string); rid == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	RequestID()(func(c echo.Context) error { return nil })(c)

	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestLogger_LogsRequestWithIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	auth.SetIdentity(c, auth.Identity{UserID: uuid.New(), Role: auth.RoleDoctor})

	h := Logger(logger)(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"status":200`) || !strings.Contains(out, `"role":2`) {
		t.Errorf("unexpected log line: %s", out)
	}
}

func TestLogger_HandlesError(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/poly/x", nil), rec)

	h := Logger(zerolog.New(&buf))(func(c echo.Context) error { return apperr.NotFound("polyclinic") })
	if err := h(c); err != nil {
		t.Fatalf("expected error to be handled, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(buf.String(), `"status":404`) {
		t.Errorf("expected logged status 404, got %s", buf.String())
	}
}

func TestRecovery(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := Recovery(zerolog.Nop())(func(c echo.Context) error { panic("boom") })(c)
	if !errors.Is(err, apperr.ErrInternal) {
		t.Errorf("expected internal error, got %v", err)
	}
}

func TestRateLimit_ExceedsBurst(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		if err := h(c); err != nil {
			t.Fatalf("request %d: unexpected error %v", i+1, err)
		}
	}

	rec := httptest.NewRecorder()
	err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestLimiterStore_Refills(t *testing.T) {
	start := time.Now()
	s := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}, start)
	if ok, _ := s.allow("ip:10.0.0.1", start); !ok {
		t.Fatal("expected first request to pass")
	}
	ok, retry := s.allow("ip:10.0.0.1", start)
	if ok {
		t.Fatal("expected limiter to be empty")
	}
	if retry != 1 {
		t.Errorf("retry = %d, want 1", retry)
	}
	if ok, _ := s.allow("ip:10.0.0.2", start); !ok {
		t.Error("other callers have their own budget")
	}
	if ok, _ := s.allow("ip:10.0.0.1", start.Add(1500*time.Millisecond)); !ok {
		t.Error("expected refill after 1.5s")
	}
}

func TestLimiterStore_RetryAfterFromDelay(t *testing.T) {
	start := time.Now()
	s := newLimiterStore(RateLimitConfig{RequestsPerSecond: 0.25, BurstSize: 1}, start)
	s.allow("user:a", start)
	if ok, retry := s.allow("user:a", start); ok || retry != 4 {
		t.Errorf("got ok=%v retry=%d, want rejection with retry 4", ok, retry)
	}
	// A rejected request must not consume future budget.
	if ok, _ := s.allow("user:a", start.Add(4*time.Second)); !ok {
		t.Error("expected token after 4s")
	}
}

func TestLimiterStore_ZeroBurstRejects(t *testing.T) {
	s := newLimiterStore(RateLimitConfig{RequestsPerSecond: 5, BurstSize: 0}, time.Now())
	if ok, retry := s.allow("ip:1.2.3.4", time.Now()); ok || retry != 1 {
		t.Errorf("got ok=%v retry=%d", ok, retry)
	}
}

func TestLimiterStore_SweepsIdleCallers(t *testing.T) {
	start := time.Now()
	s := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}, start)
	s.allow("ip:old", start)
	s.allow("ip:new", start.Add(idleAfter+time.Minute))
	if _, ok := s.callers["ip:old"]; ok {
		t.Error("idle caller not swept")
	}
	if _, ok := s.callers["ip:new"]; !ok {
		t.Error("active caller missing")
	}
}

func TestBodyLimit(t *testing.T) {
	e := echo.New()
	h := BodyLimit("10", "1K")(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/poly/new", strings.NewReader(`{"name":"a very long polyclinic name"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	err := h(e.NewContext(req, httptest.NewRecorder()))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %v", err)
	}
}

func TestParseSize(t *testing.T) {
	cases := map[string]int64{"10": 10, "2K": 2048, "1M": 1 << 20, "1g": 1 << 30, "": 0, "abc": 0}
	for in, want := range cases {
		if got := ParseSize(in); got != want {
			t.Errorf("ParseSize(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestAudit_OnlyPHIRoutes(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	mw := Audit(zerolog.New(&buf))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	mw(ok)(e.NewContext(httptest.NewRequest(http.MethodGet, "/poly", nil), httptest.NewRecorder()))
	if buf.Len() != 0 {
		t.Errorf("expected no audit for /poly, got %s", buf.String())
	}

	mw(ok)(e.NewContext(httptest.NewRequest(http.MethodGet, "/emr/123", nil), httptest.NewRecorder()))
	if !strings.Contains(buf.String(), "phi_access") {
		t.Errorf("expected audit entry for /emr, got %s", buf.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	SecurityHeaders()(func(c echo.Context) error { return nil })(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("expected Cache-Control: no-store")
	}
}
