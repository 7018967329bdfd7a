package middleware

// identity.go holds the context keys the bearer middleware writes and the
// helpers every later middleware and handler reads them through.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	ctxUserID    = "user_id"
	ctxRequestID = "request_id"
)

// SetUserID stores the authenticated user id on c.
func SetUserID(c echo.Context, id uint64) { c.Set(ctxUserID, id) }

// UserID returns the authenticated user id stored by BearerAuth.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// RequestID returns the id assigned by RequestLogger, or "".
func RequestID(c echo.Context) string {
	s, _ := c.Get(ctxRequestID).(string)
	return s
}

// userKey is the user part of rate limit keys: the id, or "anon".
func userKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
