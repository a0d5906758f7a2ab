package respond

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequestIDKey is the echo context key under which the request id middleware
// stores the correlation id.
const RequestIDKey = "request_id"

type entityEnvelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"requestId"`
}

type listData struct {
	Items    interface{} `json:"items"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
}

type problem struct {
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Status    int     `json:"status"`
	Detail    string  `json:"detail,omitempty"`
	Issues    []Issue `json:"issues,omitempty"`
	RequestID string  `json:"requestId"`
}

func requestID(c echo.Context) string {
	rid, _ := c.Get(RequestIDKey).(string)
	return rid
}

// Entity writes a single-entity envelope with the given status code.
func Entity(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, entityEnvelope{Success: true, Data: data, RequestID: requestID(c)})
}

// List writes a paginated list envelope. page is 1-based.
func List(c echo.Context, items interface{}, total, page, pageSize int) error {
	return c.JSON(http.StatusOK, entityEnvelope{
		Success: true,
		Data: listData{
			Items:    items,
			Total:    total,
			Page:     page,
			PageSize: pageSize,
		},
		RequestID: requestID(c),
	})
}

// ErrorHandler returns an echo.HTTPErrorHandler that normalizes every error
// into the problem-details envelope. Unexpected errors become a generic 500;
// their internals are logged server-side, keyed by request id, and never
// echoed to the client.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		p := problem{
			Type:      "internal",
			Title:     "Internal Server Error",
			Status:    http.StatusInternalServerError,
			RequestID: requestID(c),
		}

		switch e := err.(type) {
		case *Error:
			p.Type = e.Type
			p.Title = e.Title
			p.Status = e.Status
			p.Detail = e.Detail
			p.Issues = e.Issues
		case *echo.HTTPError:
			p.Status = e.Code
			p.Type = typeForStatus(e.Code)
			p.Title = http.StatusText(e.Code)
			if msg, ok := e.Message.(string); ok {
				p.Detail = msg
			}
		}

		if p.Status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("request_id", p.RequestID).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
			// Detail suppressed for 5xx.
			p.Detail = ""
		}

		c.Response().Header().Set("Cache-Control", "no-store")
		if writeErr := c.JSON(p.Status, p); writeErr != nil {
			logger.Error().Err(writeErr).Str("request_id", p.RequestID).Msg("failed to write error response")
		}
	}
}

func typeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not-found"
	case http.StatusConflict:
		return "conflict"
	default:
		return "internal"
	}
}
