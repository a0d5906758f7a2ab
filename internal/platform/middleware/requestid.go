package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/telecare/telecare/internal/platform/respond"
)

// RequestID returns middleware that resolves a correlation id for every
// request. An inbound X-Request-ID or X-Correlation-ID header is trusted and
// forwarded; otherwise a fresh UUID is generated. The id is stored on the
// echo context and echoed back in the X-Request-ID response header.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get("X-Request-ID")
			if rid == "" {
				rid = c.Request().Header.Get("X-Correlation-ID")
			}
			if rid == "" {
				rid = uuid.New().String()
			}

			c.Set(respond.RequestIDKey, rid)
			c.Response().Header().Set("X-Request-ID", rid)
			return next(c)
		}
	}
}
