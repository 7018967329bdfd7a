package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Authorizer answers capability questions.  rbac.Checker implements it.
type Authorizer interface {
	Can(ctx context.Context, userID uint64, required ...string) (bool, error)
}

// RequireCapabilities rejects the request unless the caller's role holds
// every capability in caps.  It must run after BearerAuth: a request with no
// identity gets 401, a denied one 403.
func RequireCapabilities(authz Authorizer, logger *logrus.Logger, caps ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, ok := UserID(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			allowed, err := authz.Can(c.Request().Context(), uid, caps...)
			if err != nil {
				logger.WithError(err).WithFields(logrus.Fields{
					"user_id":      uid,
					"capabilities": caps,
				}).Error("capability check failed")
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authorization failed"})
			}
			if !allowed {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
