package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rbac-backend/internal/apperr"
	"github.com/iliyamo/rbac-backend/internal/service"
)

// RoleHandler serves /role.  Capability checks are route middleware.
type RoleHandler struct {
	Base
	Roles *service.RoleService
}

func NewRoleHandler(base Base, roles *service.RoleService) *RoleHandler {
	return &RoleHandler{Base: base, Roles: roles}
}

type createRoleReq struct {
	RoleName     string   `json:"role_name"`
	Capabilities []string `json:"capabilities"`
}

type updateRoleReq struct {
	RoleID       int      `json:"role_id"`
	RoleName     string   `json:"role_name"`
	Capabilities []string `json:"capabilities"`
}

type roleIDReq struct {
	RoleID int `json:"role_id"`
}

func roleIDParam(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("role_id"))
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid role id")
	}
	return id, nil
}

func (h *RoleHandler) List(c echo.Context) error {
	ctx, cancel := h.Context(c)
	defer cancel()

	roles, total, err := h.Roles.List(ctx, PageFromQuery(c))
	if err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"roles": roles, "count": total})
}

// Detail handles GET /role/detail/:role_id?with_role_access=bool.
func (h *RoleHandler) Detail(c echo.Context) error {
	id, err := roleIDParam(c)
	if err != nil {
		return h.Fail(c, err)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	withAccess := queryBool(c, "with_role_access")
	role, caps, err := h.Roles.Detail(ctx, id, withAccess)
	if err != nil {
		return h.Fail(c, err)
	}
	body := echo.Map{"role": role}
	if withAccess {
		body["capabilities"] = caps
	}
	return c.JSON(http.StatusOK, body)
}

// Catalog handles GET /role/capabilities: every registered module.
func (h *RoleHandler) Catalog(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"modules": h.Roles.Catalog()})
}

func (h *RoleHandler) Capabilities(c echo.Context) error {
	id, err := roleIDParam(c)
	if err != nil {
		return h.Fail(c, err)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	caps, err := h.Roles.Capabilities(ctx, id)
	if err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"role_id": id, "capabilities": caps})
}

func (h *RoleHandler) Create(c echo.Context) error {
	var req createRoleReq
	if err := c.Bind(&req); err != nil {
		return BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	caps := req.Capabilities
	if caps == nil {
		caps = []string{}
	}
	id, err := h.Roles.Create(ctx, CurrentUser(c), service.RoleInput{Name: req.RoleName, Capabilities: caps})
	if err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, statusData(echo.Map{"role_id": id, "status": "role_created"}))
}

// Update handles PATCH /role/update.  Omitting "capabilities" keeps the
// current grants; an empty list revokes them all.
func (h *RoleHandler) Update(c echo.Context) error {
	var req updateRoleReq
	if err := c.Bind(&req); err != nil {
		return BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	err := h.Roles.Update(ctx, service.RoleInput{ID: req.RoleID, Name: req.RoleName, Capabilities: req.Capabilities})
	if err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, statusData(echo.Map{"role_id": req.RoleID, "status": "role_updated"}))
}

func (h *RoleHandler) Delete(c echo.Context) error {
	var req roleIDReq
	if err := c.Bind(&req); err != nil {
		return BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	if err := h.Roles.Delete(ctx, req.RoleID); err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, statusData(echo.Map{"role_id": req.RoleID, "status": "role_deleted"}))
}
