package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/hospital/internal/platform/apperr"
	"github.com/ehr/hospital/internal/platform/auth"
	"github.com/ehr/hospital/internal/platform/validate"
)

type stubProfiles struct{}

func (stubProfiles) ProfileOf(_ context.Context, u *User) (any, error) {
	return map[string]any{"user_id": u.ID.String(), "name": "Dr. Who"}, nil
}

func newTestHandler() (*Handler, *echo.Echo) {
	svc := newTestService()
	h := NewHandler(svc, stubProfiles{})
	e := echo.New()
	e.Validator = validate.New()
	return h, e
}

func TestHandler_Token_Form(t *testing.T) {
	h, e := newTestHandler()
	h.svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "secret-pass", Role: auth.RoleAdmin})

	form := url.Values{"username": {"a@x.com"}, "password": {"secret-pass"}}
	req := httptest.NewRequest(http.MethodPost, "/oauth/client/token", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Token(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Error("expected access_token in response")
	}
	if body["token_type"] != "bearer" {
		t.Errorf("expected token_type bearer, got %v", body["token_type"])
	}
	if body["expires_in"] != float64(172800) {
		t.Errorf("expected expires_in 172800, got %v", body["expires_in"])
	}
}

func TestHandler_Token_WrongPassword(t *testing.T) {
	h, e := newTestHandler()
	h.svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "secret-pass", Role: auth.RoleAdmin})

	form := url.Values{"username": {"a@x.com"}, "password": {"nope"}}
	req := httptest.NewRequest(http.MethodPost, "/oauth/client/token", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.Token(c)
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestHandler_Token_MissingFields(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/oauth/client/token", strings.NewReader("username=a@x.com"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	c := e.NewContext(req, httptest.NewRecorder())

	if err := h.Token(c); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_Me(t *testing.T) {
	h, e := newTestHandler()
	u, _ := h.svc.Register(context.Background(), RegisterInput{Email: "doc@x.com", Password: "secret-pass", Role: auth.RoleDoctor})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	auth.SetIdentity(c, u.Identity())

	if err := h.Me(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		User    User           `json:"user"`
		Profile map[string]any `json:"profile"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.User.ID != u.ID || body.User.Role != auth.RoleDoctor {
		t.Errorf("unexpected user %+v", body.User)
	}
	if body.Profile["name"] != "Dr. Who" {
		t.Errorf("expected profile to be included, got %v", body.Profile)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("password hash must never be serialised")
	}
}

func TestHandler_Me_Unauthenticated(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/auth/me", nil), httptest.NewRecorder())
	if err := h.Me(c); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestHandler_Logout(t *testing.T) {
	h, e := newTestHandler()
	id := auth.Identity{UserID: uuid.New(), Role: auth.RoleAdmin, TokenID: uuid.NewString(), ExpiresAt: 4102444800}

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	auth.SetIdentity(c, id)

	if err := h.Logout(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_ListUsers_RequiresAdmin(t *testing.T) {
	h, e := newTestHandler()
	handler := auth.Require(auth.ActionUserList)(h.ListUsers)

	req := httptest.NewRequest(http.MethodGet, "/user/list", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	auth.SetIdentity(c, auth.Identity{UserID: uuid.New(), Role: auth.RoleDoctor})
	if err := handler(c); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for doctor, got %v", err)
	}

	h.svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "secret-pass", Role: auth.RoleAdmin})
	rec := httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/user/list", nil), rec)
	auth.SetIdentity(c, auth.Identity{UserID: uuid.New(), Role: auth.RoleAdmin})
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Total int `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 1 {
		t.Errorf("expected 1 user, got %d", body.Total)
	}
}
