// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/rbac-backend/internal/config"
	"github.com/iliyamo/rbac-backend/internal/handler"
	"github.com/iliyamo/rbac-backend/internal/middleware"
	"github.com/iliyamo/rbac-backend/internal/rbac"
	"github.com/iliyamo/rbac-backend/internal/sandbox"
)

// Deps is everything the routes need.  Redis, Metrics and Sandbox may be
// nil: without Redis the rate limiter and the catalog cache pass through.
type Deps struct {
	DB      *sql.DB
	Redis   *redis.Client
	Logger  *logrus.Logger
	Metrics *middleware.Metrics

	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig

	Tokens middleware.TokenVerifier
	Users  middleware.UserLookup
	Authz  middleware.Authorizer

	Auth    *handler.AuthHandler
	Account *handler.AccountHandler
	Roles   *handler.RoleHandler
	UserMgr *handler.UserHandler
	Sandbox *sandbox.Handler
}

// RegisterRoutes mounts every route group.  401 means no valid bearer; 403
// means the caller's role lacks a required capability.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.Use(middleware.RequestLogger(d.Logger))
	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware())
		e.GET("/metrics", d.Metrics.Handler())
	}
	e.GET("/health", handler.Health(d.DB))

	bearer := middleware.BearerAuth(d.Tokens, d.Users, d.Logger)
	need := func(caps ...string) echo.MiddlewareFunc {
		return middleware.RequireCapabilities(d.Authz, d.Logger, caps...)
	}

	registerAuth(e, d, bearer)
	registerAccount(e, d, bearer)

	roles := e.Group("/role", bearer)
	roles.GET("/list", d.Roles.List, need(rbac.ReadRole, rbac.CreateUser, rbac.UpdateUser))
	roles.GET("/detail/:role_id", d.Roles.Detail, need(rbac.ReadRole))
	// The cache runs after the gate so a cached catalog never reaches a
	// caller without read_role.
	roles.GET("/capabilities", d.Roles.Catalog, need(rbac.ReadRole), middleware.NewRedisCache(d.Cache, d.Redis, d.Logger))
	roles.GET("/capability/:role_id", d.Roles.Capabilities, need(rbac.ReadRole))
	roles.POST("/create", d.Roles.Create, need(rbac.CreateRole))
	roles.PATCH("/update", d.Roles.Update, need(rbac.UpdateRole))
	roles.DELETE("/delete", d.Roles.Delete, need(rbac.DeleteRole))

	users := e.Group("/user", bearer)
	users.GET("/list", d.UserMgr.List, need(rbac.ReadUser))
	users.GET("/detail/:user_id", d.UserMgr.Detail, need(rbac.ReadUser))
	users.POST("/create", d.UserMgr.Create, need(rbac.CreateUser))
	users.PATCH("/change-status", d.UserMgr.ChangeStatus, need(rbac.UpdateUser))
	users.PATCH("/change-role", d.UserMgr.ChangeRole, need(rbac.UpdateUser))
	users.DELETE("/delete", d.UserMgr.Delete, need(rbac.DeleteUser))

	if d.Sandbox != nil {
		sandbox.Routes(e, d.Sandbox, bearer, d.Authz, d.Logger)
	}
}

// registerAuth mounts /auth.  Every route shares the rate limiter; logout
// routes also need a bearer token.
func registerAuth(e *echo.Echo, d Deps, bearer echo.MiddlewareFunc) {
	g := e.Group("/auth", middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Logger))
	g.POST("/login", d.Auth.Login)
	g.POST("/refresh-token", d.Auth.Refresh)
	g.POST("/forgot-password", d.Auth.ForgotPassword)
	g.POST("/reset-password", d.Auth.ResetPassword)
	g.POST("/confirm-account", d.Auth.ConfirmAccount)
	g.POST("/logout", d.Auth.Logout, bearer)
	g.POST("/logout-all", d.Auth.LogoutAll, bearer)
}

func registerAccount(e *echo.Echo, d Deps, bearer echo.MiddlewareFunc) {
	g := e.Group("/account", bearer)
	g.GET("/me", d.Account.Me)
	g.GET("/role-access", d.Account.RoleAccess)
	g.POST("/update-profile", d.Account.UpdateProfile)
	g.POST("/change-password", d.Account.ChangePassword)
	g.GET("/sessions", d.Account.Sessions)
	g.POST("/revoke-session", d.Account.RevokeSession)
	g.POST("/revoke-other-sessions", d.Account.RevokeOtherSessions)
}
