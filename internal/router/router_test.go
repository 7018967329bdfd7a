package router

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/rbac-backend/internal/config"
	"github.com/iliyamo/rbac-backend/internal/handler"
	"github.com/iliyamo/rbac-backend/internal/middleware"
	"github.com/iliyamo/rbac-backend/internal/model"
	"github.com/iliyamo/rbac-backend/internal/rbac"
	"github.com/iliyamo/rbac-backend/internal/repository"
	"github.com/iliyamo/rbac-backend/internal/sandbox"
	"github.com/iliyamo/rbac-backend/internal/service"
	"github.com/iliyamo/rbac-backend/internal/utils"
)

// Bearer tokens are the user id they stand for.
type idTokens struct{}

func (idTokens) Verify(raw string) (string, error) {
	if raw == "" || strings.Trim(raw, "0123456789") != "" {
		return "", errors.New("invalid token")
	}
	return raw, nil
}

type activeUsers struct{}

func (activeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	if id > 100 {
		return model.User{}, sql.ErrNoRows
	}
	return model.User{ID: id, IsActive: true}, nil
}

type grants map[uint64][]string

func (g grants) Can(_ context.Context, userID uint64, required ...string) (bool, error) {
	have := map[string]bool{}
	for _, c := range g[userID] {
		have[c] = true
	}
	for _, c := range required {
		if !have[c] {
			return false, nil
		}
	}
	return true, nil
}

type server struct {
	e       *echo.Echo
	mock    sqlmock.Sqlmock
	metrics *middleware.Metrics
}

func newServer(t *testing.T, rdb *redis.Client) *server {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := config.Config{Env: "development", RequestTimeout: 5 * time.Second, CodeLength: 6}
	issuer, err := utils.NewTokenIssuer(utils.TokenConfig{
		Secret: "router-secret", Algorithm: "HS256",
		AccessTTL: time.Minute, RefreshTTL: time.Hour, RefreshSecret: "router-refresh",
	})
	require.NoError(t, err)

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	tokens := repository.NewTokenRepo(db)
	registry := rbac.NewRegistry(rbac.BaseModules()...)
	registry.Register(sandbox.Module())
	base := handler.NewBase(cfg, logger)

	s := &server{e: echo.New(), mock: mock, metrics: middleware.NewMetrics(prometheus.NewRegistry())}
	RegisterRoutes(s.e, Deps{
		DB:      db,
		Redis:   rdb,
		Logger:  logger,
		Metrics: s.metrics,
		RateLimit: config.RateLimitConfig{
			Enabled: true, Capacity: 2, RefillTokens: 1,
			RefillInterval: time.Minute, TTL: 10 * time.Minute,
			KeyStrategy: "ip_route", Prefix: "rl",
		},
		Cache: config.CacheConfig{
			Enabled: true, Methods: map[string]bool{http.MethodGet: true},
			TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 1 << 20,
		},
		Tokens: idTokens{},
		Users:  activeUsers{},
		Authz: grants{
			1: {rbac.ReadRole, rbac.CreateUser, rbac.UpdateUser, sandbox.ReadSandbox},
			2: {rbac.ReadUser},
		},
		Auth:    handler.NewAuthHandler(base, service.NewAuthService(db, users, tokens, issuer, nil, logger, cfg)),
		Account: handler.NewAccountHandler(base, service.NewAccountService(db, users, roles, tokens, issuer, cfg)),
		Roles:   handler.NewRoleHandler(base, service.NewRoleService(db, roles, users, registry)),
		UserMgr: handler.NewUserHandler(base, service.NewUserService(db, users, roles, tokens, nil, logger, cfg)),
		Sandbox: sandbox.NewHandler(base, sandbox.NewService(db, sandbox.NewRepo(db))),
	})
	return s
}

func (s *server) do(method, path, bearer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func TestProtectedRoutesNeedBearer(t *testing.T) {
	s := newServer(t, nil)
	routes := []struct{ method, path string }{
		{http.MethodPost, "/auth/logout"},
		{http.MethodPost, "/auth/logout-all"},
		{http.MethodGet, "/account/me"},
		{http.MethodGet, "/account/sessions"},
		{http.MethodGet, "/role/list"},
		{http.MethodGet, "/role/capabilities"},
		{http.MethodPost, "/role/create"},
		{http.MethodGet, "/user/list"},
		{http.MethodDelete, "/user/delete"},
		{http.MethodGet, "/sandbox/list"},
	}
	for _, r := range routes {
		rec := s.do(r.method, r.path, "", "{}")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", r.method, r.path)

		rec = s.do(r.method, r.path, "not-a-token", "{}")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", r.method, r.path)
	}
}

func TestCapabilityGates(t *testing.T) {
	s := newServer(t, nil)
	denied := []struct {
		method, path, user string
	}{
		// role listing needs read_role and create_user and update_user
		{http.MethodGet, "/role/list", "2"},
		{http.MethodPost, "/role/create", "1"},
		{http.MethodPatch, "/role/update", "1"},
		{http.MethodDelete, "/role/delete", "1"},
		{http.MethodGet, "/user/list", "1"},
		{http.MethodPost, "/user/create", "2"},
		{http.MethodPatch, "/user/change-role", "2"},
		{http.MethodPost, "/sandbox/create", "1"},
		{http.MethodGet, "/sandbox/list", "2"},
		{http.MethodGet, "/role/capabilities", "3"},
	}
	for _, r := range denied {
		rec := s.do(r.method, r.path, r.user, "{}")
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s as %s", r.method, r.path, r.user)
	}
}

func TestCatalogIsCachedAfterGate(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := newServer(t, rdb)

	first := s.do(http.MethodGet, "/role/capabilities", "1", "")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	var body struct {
		Modules []rbac.Module `json:"modules"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &body))
	require.Len(t, body.Modules, 3)
	assert.Equal(t, "sandbox", body.Modules[2].ModuleID)

	second := s.do(http.MethodGet, "/role/capabilities", "1", "")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	denied := s.do(http.MethodGet, "/role/capabilities", "2", "")
	assert.Equal(t, http.StatusForbidden, denied.Code)
	assert.Empty(t, denied.Header().Get("X-Cache"))
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := newServer(t, rdb)

	// Empty credentials fail validation before touching the database.
	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodPost, "/auth/login", "", `{"email":"","password":""}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := s.do(http.MethodPost, "/auth/login", "", `{"email":"","password":""}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t, nil)

	s.mock.ExpectPing()
	rec := s.do(http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `rbac_http_requests_total{method="GET",route="/health",status="200"} 1`)
	require.NoError(t, s.mock.ExpectationsWereMet())
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newServer(t, nil)
	s.mock.ExpectPing()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-42")
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(echo.HeaderXRequestID))
}
