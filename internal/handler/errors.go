package handler

import (
	"context"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/rbac-backend/internal/apperr"
	"github.com/iliyamo/rbac-backend/internal/config"
	"github.com/iliyamo/rbac-backend/internal/middleware"
	"github.com/iliyamo/rbac-backend/internal/repository"
	"github.com/iliyamo/rbac-backend/internal/service"
)

// Base carries what every handler needs: the request timeout, the
// production flag for error redaction and the logger.  Module packages
// embed it too.
type Base struct {
	Cfg    config.Config
	Logger *logrus.Logger
}

func NewBase(cfg config.Config, logger *logrus.Logger) Base {
	return Base{Cfg: cfg, Logger: logger}
}

// Context bounds the work of one request by REQUEST_TIMEOUT.
func (b Base) Context(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), b.Cfg.RequestTimeout)
}

// Fail writes err as {"error": msg} with the status of its kind.  Internal
// errors are logged with a stack and, in production, reduced to
// "<operation> failed".  Domain errors are not logged.
func (b Base) Fail(c echo.Context, err error) error {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		b.Logger.WithError(err).WithFields(logrus.Fields{
			"path":       c.Path(),
			"method":     c.Request().Method,
			"request_id": middleware.RequestID(c),
			"stack":      string(debug.Stack()),
		}).Error("request failed")
	}
	return c.JSON(kind.HTTPStatus(), echo.Map{"error": apperr.Message(err, b.Cfg.IsProduction())})
}

// BadBody answers a request whose JSON body could not be decoded.
func BadBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
}

// CurrentUser returns the id BearerAuth stored.  Routes that call it are
// always mounted behind BearerAuth.
func CurrentUser(c echo.Context) uint64 {
	id, _ := middleware.UserID(c)
	return id
}

// PageFromQuery reads ?search=&page=&limit=.  Unparsable numbers fall back
// to the defaults applied by repository.Page.Normalize.
func PageFromQuery(c echo.Context) repository.Page {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return repository.Page{
		Search: c.QueryParam("search"),
		Page:   page,
		Limit:  limit,
	}.Normalize()
}

func queryBool(c echo.Context, name string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(c.QueryParam(name)))
	return v
}

func clientOf(c echo.Context) service.Client {
	return service.Client{UserAgent: c.Request().UserAgent(), IP: c.RealIP()}
}

func statusData(fields echo.Map) echo.Map {
	return echo.Map{"data": fields}
}
