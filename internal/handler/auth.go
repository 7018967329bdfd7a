package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rbac-backend/internal/service"
)

// AuthHandler serves /auth.
type AuthHandler struct {
	Base
	Auth *service.AuthService
}

func NewAuthHandler(base Base, auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Base: base, Auth: auth}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type emailReq struct {
	Email string `json:"email"`
}

type codeReq struct {
	Email           string `json:"email"`
	Code            string `json:"code"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (r codeReq) input() service.CodeInput {
	return service.CodeInput{Email: r.Email, Code: r.Code, NewPassword: r.NewPassword, ConfirmPassword: r.ConfirmPassword}
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	tokens, err := h.Auth.Login(ctx, req.Email, req.Password, clientOf(c))
	if err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tokens": tokens})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	tokens, err := h.Auth.Refresh(ctx, req.RefreshToken, clientOf(c))
	if err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tokens": tokens})
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	if err := h.Auth.ForgotPassword(ctx, req.Email); err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, statusData(echo.Map{"email": req.Email, "status": "reset_code_sent"}))
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req codeReq
	if err := c.Bind(&req); err != nil {
		return BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	if err := h.Auth.ResetPassword(ctx, req.input()); err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, statusData(echo.Map{"email": req.Email, "status": "new_password_confirmed"}))
}

func (h *AuthHandler) ConfirmAccount(c echo.Context) error {
	var req codeReq
	if err := c.Bind(&req); err != nil {
		return BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	if err := h.Auth.ConfirmAccount(ctx, req.input()); err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, statusData(echo.Map{"email": req.Email, "status": "account_confirmed"}))
}

func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return BadBody(c)
	}
	ctx, cancel := h.Context(c)
	defer cancel()

	if err := h.Auth.Logout(ctx, CurrentUser(c), req.RefreshToken); err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, statusData(echo.Map{"status": "logged_out"}))
}

func (h *AuthHandler) LogoutAll(c echo.Context) error {
	ctx, cancel := h.Context(c)
	defer cancel()

	n, err := h.Auth.LogoutAll(ctx, CurrentUser(c))
	if err != nil {
		return h.Fail(c, err)
	}
	return c.JSON(http.StatusOK, statusData(echo.Map{"deleted_count": n, "status": "logged_out"}))
}
