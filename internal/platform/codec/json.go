// Package codec wires goccy/go-json into echo and validates free-form JSON
// documents such as the "historical" profile attribute.
package codec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	"github.com/ehr/hospital/internal/platform/apperr"
)

// Serializer implements echo.JSONSerializer on top of goccy/go-json.
type Serializer struct{}

func (Serializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (Serializer) Deserialize(c echo.Context, i interface{}) error {
	err := json.NewDecoder(c.Request().Body).Decode(i)
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &typeErr):
		return apperr.Validation("field %q must be of type %s", typeErr.Field, typeErr.Type)
	case errors.As(err, &syntaxErr):
		return apperr.Validation("malformed JSON at offset %d", syntaxErr.Offset)
	default:
		return apperr.Validation("malformed JSON: %v", err)
	}
}

// ParseDocument decodes raw into a JSON object. Any well-formed object is
// accepted; arrays, scalars and malformed input are rejected.
func ParseDocument(raw []byte) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("not well-formed JSON")
	}
	if raw[0] != '{' {
		return nil, fmt.Errorf("must be a JSON object")
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// Marshal encodes v with goccy/go-json.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}
