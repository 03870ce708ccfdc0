package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// BodyLimit rejects requests whose declared or actual body exceeds limit.
// Limits are written as "512K", "2M" or "1G"; a bare number is bytes.
// Multipart uploads use uploadLimit instead.
func BodyLimit(limit, uploadLimit string) echo.MiddlewareFunc {
	defaultBytes := ParseSize(limit)
	uploadBytes := ParseSize(uploadLimit)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			max := defaultBytes
			if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
				max = uploadBytes
			}
			if max <= 0 {
				return next(c)
			}
			if req.ContentLength > max {
				return &echo.HTTPError{Code: http.StatusRequestEntityTooLarge, Message: "request body too large"}
			}
			req.Body = http.MaxBytesReader(c.Response(), req.Body, max)
			return next(c)
		}
	}
}

// ParseSize converts a human readable size into bytes. Invalid input yields 0.
func ParseSize(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0
	}
	mult := int64(1)
	switch s[len(s)-1] {
	case 'K':
		mult = 1 << 10
	case 'M':
		mult = 1 << 20
	case 'G':
		mult = 1 << 30
	}
	if mult > 1 {
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n * mult
}
