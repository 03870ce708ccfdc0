package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/hospital/internal/platform/apperr"
)

// IdentityResolver confirms that the user behind a verified token still
// exists and returns its current identity.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, userID uuid.UUID) (Identity, error)
}

// Verifier checks bearer tokens.
type Verifier interface {
	Verify(ctx context.Context, raw string) (Identity, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Authenticate requires a valid bearer token and stores the caller's
// identity on the request.
func Authenticate(tokens Verifier, users IdentityResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return apperr.Unauthorized("missing authorization header")
			}
			if err := resolve(c, header, tokens, users); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// AuthenticateOptional lets anonymous requests through. A request that does
// carry a token must still present a valid one.
func AuthenticateOptional(tokens Verifier, users IdentityResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return next(c)
			}
			if err := resolve(c, header, tokens, users); err != nil {
				return err
			}
			return next(c)
		}
	}
}

func resolve(c echo.Context, header string, tokens Verifier, users IdentityResolver) error {
	raw, ok := BearerToken(header)
	if !ok {
		return apperr.Unauthorized("invalid authorization format")
	}

	ctx := c.Request().Context()
	id, err := tokens.Verify(ctx, raw)
	if err != nil {
		return err
	}

	if users != nil {
		current, err := users.ResolveIdentity(ctx, id.UserID)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				return apperr.Unauthorized("unknown user")
			}
			return err
		}
		current.TokenID = id.TokenID
		current.ExpiresAt = id.ExpiresAt
		id = current
	}

	SetIdentity(c, id)
	return nil
}

// Require gates a route on the role part of an action's policy. Ownership
// based access has to be checked in the handler with Check.
func Require(action Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := Check(c.Request().Context(), action); err != nil {
				return err
			}
			return next(c)
		}
	}
}
