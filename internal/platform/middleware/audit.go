package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/hospital/internal/platform/auth"
)

var phiPrefixes = []string{"/patient", "/emr", "/attachments"}

// Audit writes an access line for every request touching patient data:
// who, what route, which resource id and the resulting status.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if !isPHIPath(path) {
				return next(c)
			}

			err := next(c)

			evt := logger.Info().
				Str("audit", "phi_access").
				Str("method", c.Request().Method).
				Str("route", c.Path()).
				Str("resource_id", c.Param("id")).
				Int("status", c.Response().Status)
			if rid, ok := c.Get("request_id").(string); ok {
				evt = evt.Str("request_id", rid)
			}
			if id, ok := auth.CurrentIdentity(c); ok {
				evt = evt.Str("user_id", id.UserID.String()).Str("role", id.Role.String())
			}
			if err != nil {
				evt = evt.Bool("failed", true)
			}
			evt.Msg("audit")

			return err
		}
	}
}

func isPHIPath(path string) bool {
	for _, p := range phiPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
