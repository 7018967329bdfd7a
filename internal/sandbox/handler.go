package sandbox

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/rbac-backend/internal/apperr"
	"github.com/iliyamo/rbac-backend/internal/handler"
	"github.com/iliyamo/rbac-backend/internal/middleware"
)

// Handler serves /sandbox.
type Handler struct {
	handler.Base
	Sandboxes *Service
}

func NewHandler(base handler.Base, svc *Service) *Handler {
	return &Handler{Base: base, Sandboxes: svc}
}

type createReq struct {
	SandboxName string `json:"sandbox_name"`
}

type updateReq struct {
	SandboxID   uint64 `json:"sandbox_id"`
	SandboxName string `json:"sandbox_name"`
}

type idReq struct {
	SandboxID uint64 `json:"sandbox_id"`
}

// Routes mounts the module under /sandbox.  bearer must authenticate the
// caller; each route then requires its own sandbox capability.
func Routes(e *echo.Echo, h *Handler, bearer echo.MiddlewareFunc, authz middleware.Authorizer, logger *logrus.Logger) {
	need := func(capID string) echo.MiddlewareFunc {
		return middleware.RequireCapabilities(authz, logger, capID)
	}
	g := e.Group("/sandbox", bearer)
	g.GET("/list", h.List, need(ReadSandbox))
	g.GET("/detail/:sandbox_id", h.Detail, need(ReadSandbox))
	g.POST("/create", h.Create, need(CreateSandbox))
	g.PATCH("/update", h.Update, need(UpdateSandbox))
	g.DELETE("/delete", h.Delete, need(DeleteSandbox))
}

func (h *Handler) List(c echo.Context) error {
	ctx, cancel := h.Context(c)
	defer cancel()

	list, total, err := h.Sandboxes.List(ctx, handler.PageFromQuery(c))
	if err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sandboxes": list, "count": total})
}

func (h *Handler) Detail(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("sandbox_id"), 10, 64)
	if err != nil || id == 0 {
		return h.Fail(c, apperr.Validation("sandbox id is required"))
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	sb, err := h.Sandboxes.Detail(ctx, id)
	if err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sandbox": sb})
}

func (h *Handler) Create(c echo.Context) error {
	var req createReq
	if err := c.Bind(&req); err != nil {
		return handler.BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	id, err := h.Sandboxes.Create(ctx, handler.CurrentUser(c), req.SandboxName)
	if err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": echo.Map{"sandbox_id": id, "status": "sandbox_created"}})
}

func (h *Handler) Update(c echo.Context) error {
	var req updateReq
	if err := c.Bind(&req); err != nil {
		return handler.BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	if err := h.Sandboxes.Update(ctx, req.SandboxID, req.SandboxName); err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": echo.Map{"sandbox_id": req.SandboxID, "status": "sandbox_updated"}})
}

func (h *Handler) Delete(c echo.Context) error {
	var req idReq
	if err := c.Bind(&req); err != nil {
		return handler.BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	if err := h.Sandboxes.Delete(ctx, req.SandboxID); err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": echo.Map{"sandbox_id": req.SandboxID, "status": "sandbox_deleted"}})
}
