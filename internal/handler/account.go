package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rbac-backend/internal/service"
)

// AccountHandler serves /account: the caller's own profile and sessions.
type AccountHandler struct {
	Base
	Account *service.AccountService
}

func NewAccountHandler(base Base, account *service.AccountService) *AccountHandler {
	return &AccountHandler{Base: base, Account: account}
}

type updateProfileReq struct {
	FullName string `json:"full_name"`
}

type changePasswordReq struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type revokeSessionReq struct {
	TokenID uint64 `json:"token_id"`
}

// Me handles GET /account/me?with_role_access=bool.
func (h *AccountHandler) Me(c echo.Context) error {
	ctx, cancel := h.Context(c)
	defer cancel()

	withAccess := queryBool(c, "with_role_access")
	profile, caps, err := h.Account.Profile(ctx, CurrentUser(c), withAccess)
	if err != nil {
		return h.Fail(c, err)
	}
	body := echo.Map{"profile": profile}
	if withAccess {
		body["role_access"] = caps
	}
	return c.JSON(http.StatusOK, body)
}

func (h *AccountHandler) RoleAccess(c echo.Context) error {
	ctx, cancel := h.Context(c)
	defer cancel()

	caps, err := h.Account.RoleAccess(ctx, CurrentUser(c))
	if err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"capabilities": caps})
}

func (h *AccountHandler) UpdateProfile(c echo.Context) error {
	var req updateProfileReq
	if err := c.Bind(&req); err != nil {
		return BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	if err := h.Account.UpdateProfile(ctx, CurrentUser(c), req.FullName); err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, statusData(echo.Map{"status": "profile_updated"}))
}

func (h *AccountHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	err := h.Account.ChangePassword(ctx, CurrentUser(c), req.OldPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, statusData(echo.Map{"status": "password_changed"}))
}

func (h *AccountHandler) Sessions(c echo.Context) error {
	ctx, cancel := h.Context(c)
	defer cancel()

	sessions, err := h.Account.Sessions(ctx, CurrentUser(c))
	if err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tokens": sessions})
}

func (h *AccountHandler) RevokeSession(c echo.Context) error {
	var req revokeSessionReq
	if err := c.Bind(&req); err != nil {
		return BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	if err := h.Account.RevokeSession(ctx, CurrentUser(c), req.TokenID); err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, statusData(echo.Map{"status": "token_deleted"}))
}

func (h *AccountHandler) RevokeOtherSessions(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	if err := h.Account.RevokeOtherSessions(ctx, CurrentUser(c), req.RefreshToken); err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, statusData(echo.Map{"status": "other_tokens_deleted"}))
}
