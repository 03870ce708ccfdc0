package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const IdentityKey contextKey = "identity"

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   Role      `json:"role"`
	// TokenID and ExpiresAt describe the bearer token that produced the
	// identity; zero when the identity did not come from a token.
	TokenID   string `json:"-"`
	ExpiresAt int64  `json:"-"`
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(Identity)
	return id, ok
}

// CurrentIdentity reads the identity placed on the request by Authenticate.
func CurrentIdentity(c echo.Context) (Identity, bool) {
	return IdentityFromContext(c.Request().Context())
}

// SetIdentity stores id on the request context of c.
func SetIdentity(c echo.Context, id Identity) {
	c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
	c.Set(string(IdentityKey), id)
}
