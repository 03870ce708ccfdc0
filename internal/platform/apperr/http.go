package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorResponse is the JSON body returned for every failed request.
type ErrorResponse struct {
	Error     Kind   `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// HTTPErrorHandler renders application and echo errors. Internal failures
// are logged with their cause and reported generically.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := render(err)
		body.RequestID, _ = c.Get("request_id").(string)

		if body.Error == KindInternal {
			logger.Error().
				Err(err).
				Str("request_id", body.RequestID).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("internal error")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Warn().Err(werr).Msg("write error response")
		}
	}
}

func render(err error) (int, ErrorResponse) {
	var appErr *Error
	if errors.As(err, &appErr) {
		status := Status(appErr.Kind)
		msg := appErr.Message
		if appErr.Kind == KindInternal || msg == "" {
			msg = http.StatusText(status)
		}
		return status, ErrorResponse{Error: appErr.Kind, Message: msg}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		kind := kindForStatus(he.Code)
		if he.Code >= http.StatusInternalServerError {
			msg = http.StatusText(he.Code)
		}
		return he.Code, ErrorResponse{Error: kind, Message: msg}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error:   KindInternal,
		Message: http.StatusText(http.StatusInternalServerError),
	}
}
