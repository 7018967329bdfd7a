package middleware // bearer authentication for every protected route group

import (
	"context"      // request-scoped lookups against the user store
	"database/sql" // sql.ErrNoRows marks a missing or deleted user
	"errors"       // errors.Is for the sentinel above
	"net/http"     // status codes for the 401/500 responses
	"strconv"      // the token subject is a decimal user id
	"strings"      // prefix cutting and trimming of the header

	"github.com/labstack/echo/v4" // middleware signature and JSON responses
	"github.com/sirupsen/logrus"  // store failures are logged, not returned

	"github.com/iliyamo/rbac-backend/internal/model"
)

// TokenVerifier checks an access token and returns its subject.
// utils.TokenIssuer implements it.
type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// UserLookup loads a non-deleted user.  repository.UserRepo implements it.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// BearerAuth validates the Authorization header and stores the caller's id
// in the context.  The token subject must name a user that still exists and
// is active, so deleting or deactivating a user locks out access tokens that
// have not yet expired.
func BearerAuth(tokens TokenVerifier, users UserLookup, logger *logrus.Logger) echo.MiddlewareFunc {
	// Built once per route group; the inner closure runs per request.
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// The header must read "Bearer <token>".  Anything else, an
			// empty token included, is treated as no credentials at all.
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}

			// Signature, algorithm and expiry are all checked by the
			// verifier; we only get the subject back.
			sub, err := tokens.Verify(strings.TrimSpace(raw))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			// Subjects are issued as decimal user ids.  Zero never names a row.
			id, err := strconv.ParseUint(sub, 10, 64)
			if err != nil || id == 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			// A valid token is not enough: the user must still exist and be
			// active.  The repository already hides soft-deleted rows.
			u, err := users.GetByID(c.Request().Context(), id)
			if errors.Is(err, sql.ErrNoRows) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user not found"})
			}
			if err != nil {
				logger.WithError(err).WithField("user_id", id).Error("bearer auth: user lookup failed")
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authentication failed"})
			}
			if !u.IsActive {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user is not active"})
			}

			// Later middleware (capability gates) and handlers read the id
			// back through UserID.
			SetUserID(c, id)
			return next(c)
		}
	}
}
