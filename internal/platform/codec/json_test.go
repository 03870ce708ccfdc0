package codec

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/hospital/internal/platform/apperr"
)

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"education":[{"school":"UI","year":2010}],"notes":null}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := doc["education"].([]any); !ok {
		t.Errorf("expected education to be an array, got %T", doc["education"])
	}
}

func TestParseDocument_Rejects(t *testing.T) {
	for _, raw := range []string{`{"a":`, `[1,2]`, `"text"`, `42`} {
		if _, err := ParseDocument([]byte(raw)); err == nil {
			t.Errorf("expected %q to be rejected", raw)
		}
	}
}

func TestParseDocument_Empty(t *testing.T) {
	doc, err := ParseDocument([]byte("  "))
	if err != nil || doc == nil || len(doc) != 0 {
		t.Errorf("expected empty document, got %v %v", doc, err)
	}
}

func TestSerializer_DeserializeErrors(t *testing.T) {
	e := echo.New()
	e.JSONSerializer = Serializer{}

	var dst struct {
		Height int `json:"height"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"height":"tall"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := c.Bind(&dst)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSerializer_Serialize(t *testing.T) {
	e := echo.New()
	e.JSONSerializer = Serializer{}
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	if err := c.JSON(http.StatusOK, map[string]int{"role": 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"role":1}` {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}
