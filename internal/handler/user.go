package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rbac-backend/internal/apperr"
	"github.com/iliyamo/rbac-backend/internal/service"
)

// UserHandler serves /user, the admin side of user management.
type UserHandler struct {
	Base
	Users *service.UserService
}

func NewUserHandler(base Base, users *service.UserService) *UserHandler {
	return &UserHandler{Base: base, Users: users}
}

type createUserReq struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     int    `json:"role"`
}

type changeStatusReq struct {
	UserID   uint64 `json:"user_id"`
	IsActive *bool  `json:"is_active"`
}

type changeRoleReq struct {
	UserID uint64 `json:"user_id"`
	Role   int    `json:"role"`
}

type userIDReq struct {
	UserID uint64 `json:"user_id"`
}

func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := h.Context(c)
	defer cancel()

	users, total, err := h.Users.List(ctx, PageFromQuery(c))
	if err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users, "total": total})
}

func (h *UserHandler) Detail(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil || id == 0 {
		return h.Fail(c, apperr.Validation("invalid user id"))
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	user, err := h.Users.Detail(ctx, id)
	if err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	id, err := h.Users.Create(ctx, CurrentUser(c), service.NewUser{Email: req.Email, FullName: req.FullName, RoleID: req.Role})
	if err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, statusData(echo.Map{"user_id": id, "status": "user_created"}))
}

func (h *UserHandler) ChangeStatus(c echo.Context) error {
	var req changeStatusReq
	if err := c.Bind(&req); err != nil {
		return BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	if err := h.Users.ChangeStatus(ctx, req.UserID, req.IsActive); err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, statusData(echo.Map{"user_id": req.UserID, "status": "user_status_changed"}))
}

func (h *UserHandler) ChangeRole(c echo.Context) error {
	var req changeRoleReq
	if err := c.Bind(&req); err != nil {
		return BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	if err := h.Users.ChangeRole(ctx, req.UserID, req.Role); err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, statusData(echo.Map{"user_id": req.UserID, "status": "user_role_changed"}))
}

func (h *UserHandler) Delete(c echo.Context) error {
	var req userIDReq
	if err := c.Bind(&req); err != nil {
		return BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	if err := h.Users.Delete(ctx, req.UserID); err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, statusData(echo.Map{"user_id": req.UserID, "status": "user_deleted"}))
}
