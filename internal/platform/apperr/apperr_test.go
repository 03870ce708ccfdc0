package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:     http.StatusBadRequest,
		KindDuplicate:      http.StatusBadRequest,
		KindAlreadyExists:  http.StatusBadRequest,
		KindUnauthorized:   http.StatusUnauthorized,
		KindForbidden:      http.StatusForbidden,
		KindNotFound:       http.StatusNotFound,
		KindRecordNotFound: http.StatusNotFound,
		KindInternal:       http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := Status(kind); got != want {
			t.Errorf("Status(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestErrorsIs_MatchesKind(t *testing.T) {
	err := fmt.Errorf("create patient: %w", NotFound("insurance"))
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected wrapped not found to match sentinel")
	}
	if errors.Is(err, ErrDuplicate) {
		t.Error("did not expect duplicate to match")
	}
}

func TestKindOf_Foreign(t *testing.T) {
	if KindOf(errors.New("boom")) != KindInternal {
		t.Error("expected foreign errors to be internal")
	}
	if KindOf(Duplicate("email already registered")) != KindDuplicate {
		t.Error("expected duplicate kind")
	}
}

func TestHTTPErrorHandler_AppError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/doctor/new", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "req-1")

	HTTPErrorHandler(zerolog.Nop())(Duplicate("email already registered"), c)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != KindDuplicate || body.Message != "email already registered" || body.RequestID != "req-1" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestHTTPErrorHandler_InternalHidesCause(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/emr/x", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(zerolog.Nop())(Internal(errors.New("pq: relation does not exist")), c)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Message != "Internal Server Error" {
		t.Errorf("expected generic message, got %q", body.Message)
	}
}

func TestHTTPErrorHandler_EchoError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(zerolog.Nop())(echo.NewHTTPError(http.StatusForbidden, "required role: admin"), c)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	var body ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Error != KindForbidden {
		t.Errorf("expected forbidden kind, got %s", body.Error)
	}
}
