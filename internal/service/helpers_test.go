package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/rbac-backend/internal/config"
	"github.com/iliyamo/rbac-backend/internal/mail"
	"github.com/iliyamo/rbac-backend/internal/rbac"
	"github.com/iliyamo/rbac-backend/internal/repository"
	"github.com/iliyamo/rbac-backend/internal/utils"
)

var (
	userCols  = []string{"user_id", "email", "password", "full_name", "role", "created_by", "is_verified", "is_active", "is_deleted", "reset_code", "verify_code", "verified_at", "created_at", "updated_at"}
	tokenCols = []string{"auth_id", "user_id", "refresh_token", "user_agent", "ip_address", "created_at", "expires_at"}
	roleCols  = []string{"role_id", "role_name", "created_by", "created_at", "updated_at"}
)

var testNow = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, m mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

// captureString matches any string argument and remembers it.
type captureString struct{ v *string }

func (c captureString) Match(v driver.Value) bool {
	s, ok := v.(string)
	if ok {
		*c.v = s
	}
	return ok
}

// sameTime matches a time argument by instant.
type sameTime struct{ want time.Time }

func (s sameTime) Match(v driver.Value) bool {
	t, ok := v.(time.Time)
	return ok && t.Equal(s.want)
}

type harness struct {
	db       *sql.DB
	mock     sqlmock.Sqlmock
	issuer   *utils.TokenIssuer
	mailer   *fakeMailer
	registry *rbac.Registry
	auth     *AuthService
	account  *AccountService
	roles    *RoleService
	users    *UserService
	roleRepo *repository.RoleRepo
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	issuer, err := utils.NewTokenIssuer(utils.TokenConfig{
		Secret:        "service-test-secret",
		Algorithm:     "HS256",
		AccessTTL:     10 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		RefreshSecret: "service-test-refresh",
	})
	require.NoError(t, err)
	issuer = issuer.WithClock(func() time.Time { return testNow })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := config.Config{
		BcryptCost:     bcrypt.MinCost,
		CodeLength:     6,
		FrontendAppURL: "http://localhost:5173",
	}
	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	tokens := repository.NewTokenRepo(db)
	mailer := &fakeMailer{}
	reg := rbac.NewRegistry(rbac.BaseModules()...)

	auth := NewAuthService(db, users, tokens, issuer, mailer, logger, cfg)
	auth.Now = func() time.Time { return testNow }

	return &harness{
		db:       db,
		mock:     mock,
		issuer:   issuer,
		mailer:   mailer,
		registry: reg,
		auth:     auth,
		account:  NewAccountService(db, users, roles, tokens, issuer, cfg),
		roles:    NewRoleService(db, roles, users, reg),
		users:    NewUserService(db, users, roles, tokens, mailer, logger, cfg),
		roleRepo: roles,
	}
}

func mustHash(t *testing.T, plain string) string {
	t.Helper()
	h, err := utils.HashPassword(plain, bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

// userOpts describes one users row; the zero value is a verified, active
// user 7 with role 2.
type userOpts struct {
	id         uint64
	email      string
	hash       string
	role       int
	unverified bool
	inactive   bool
	resetCode  string
	verifyCode string
}

func userRows(o userOpts) *sqlmock.Rows {
	if o.id == 0 {
		o.id = 7
	}
	if o.email == "" {
		o.email = "ana@example.com"
	}
	if o.role == 0 {
		o.role = 2
	}
	return sqlmock.NewRows(userCols).AddRow(
		o.id, o.email, o.hash, "Ana", o.role, 1,
		!o.unverified, !o.inactive, false, o.resetCode, o.verifyCode,
		nil, testNow, nil)
}

func tokenRows(id, userID uint64, hash string, expires time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(tokenCols).AddRow(id, userID, hash, "curl/8", "10.0.0.1", testNow.Add(-time.Hour), expires)
}

var errDBDown = errors.New("dial tcp 127.0.0.1:3306: connect: connection refused")
