package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// RequestLogger assigns every request an id (reusing an incoming
// X-Request-ID), echoes it in the response and logs one line per request.
func RequestLogger(logger *logrus.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			rid := c.Request().Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Set(ctxRequestID, rid)
			c.Response().Header().Set(echo.HeaderXRequestID, rid)

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := logrus.Fields{
				"request_id": rid,
				"method":     c.Request().Method,
				"path":       c.Path(),
				"status":     c.Response().Status,
				"latency_ms": time.Since(start).Milliseconds(),
				"ip":         c.RealIP(),
			}
			if uid, ok := UserID(c); ok {
				fields["user_id"] = uid
			}
			entry := logger.WithFields(fields)
			switch status := c.Response().Status; {
			case status >= 500:
				entry.Error("request")
			case status >= 400:
				entry.Info("request")
			default:
				entry.Debug("request")
			}
			return nil
		}
	}
}
