package utils // package utils provides helpers for password hashing, token issuing and validation

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned by Verify for any access token that cannot be
// trusted: bad signature, wrong algorithm, expired, malformed or missing
// subject.
var ErrInvalidToken = errors.New("invalid token")

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims is the JWT body for both token kinds.  Type keeps a refresh token
// from being accepted as a bearer credential.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"type"`
}

// TokenConfig holds the signing inputs.  All of them come from config.Config.
type TokenConfig struct {
	Secret        string
	Algorithm     string // HS256, HS384, HS512
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RefreshSecret string // HMAC key for refresh tokens at rest
}

// TokenPair is what login and refresh hand back to the client.  The refresh
// token is the raw signed JWT; only HashRefresh(RefreshToken) is persisted.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenIssuer mints and verifies tokens.  It is safe for concurrent use.
type TokenIssuer struct {
	method     jwt.SigningMethod
	secret     []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer validates cfg and returns an issuer.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	method := jwt.GetSigningMethod(cfg.Algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	if cfg.Secret == "" {
		return nil, errors.New("token secret is empty")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	refreshKey := cfg.RefreshSecret
	if refreshKey == "" {
		refreshKey = cfg.Secret
	}
	return &TokenIssuer{
		method:     method,
		secret:     []byte(cfg.Secret),
		refreshKey: []byte(refreshKey),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}, nil
}

// WithClock returns a copy of the issuer that reads time from now.
func (ti *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	cp := *ti
	cp.now = now
	return &cp
}

// RefreshTTL is the lifetime given to refresh tokens and their stored rows.
func (ti *TokenIssuer) RefreshTTL() time.Duration { return ti.refreshTTL }

// Issue mints an access/refresh pair for subject (the user id as a string).
func (ti *TokenIssuer) Issue(subject string) (TokenPair, error) {
	if subject == "" {
		return TokenPair{}, errors.New("token subject is empty")
	}
	now := ti.now().UTC()

	accessExp := now.Add(ti.accessTTL)
	access, err := ti.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
		Type: tokenTypeAccess,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("signing access token: %w", err)
	}

	// jti keeps two refresh tokens minted in the same second distinct, which
	// the unique lookup on the stored hash relies on.
	refreshExp := now.Add(ti.refreshTTL)
	refresh, err := ti.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
			ID:        uuid.NewString(),
		},
		Type: tokenTypeRefresh,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("signing refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (ti *TokenIssuer) sign(c Claims) (string, error) {
	return jwt.NewWithClaims(ti.method, c).SignedString(ti.secret)
}

// Verify checks an access token and returns its subject.
func (ti *TokenIssuer) Verify(raw string) (string, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return ti.secret, nil
	},
		jwt.WithValidMethods([]string{ti.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tok.Valid || claims.Type != tokenTypeAccess {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// HashRefresh returns the hex HMAC-SHA256 of a raw refresh token under the
// server's refresh key.  The digest is deterministic so the stored value can
// be found with an exact-match lookup, and useless without the key if the
// table leaks.
func (ti *TokenIssuer) HashRefresh(raw string) string {
	mac := hmac.New(sha256.New, ti.refreshKey)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}
