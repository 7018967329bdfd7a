package model

import "time"

// SuperadminRoleID is the well-known role created by the installer.  It is
// hidden from the role listing and editing APIs but receives no implicit
// capabilities: its grants live in role_capabilities like any other role.
const SuperadminRoleID = 1

// User mirrors a row of the `users` table.  Users are never hard-deleted;
// IsDeleted marks a soft delete.
//
// Fields:
//  ID           – users.user_id
//  Email        – business key, unique by convention (not DB-enforced)
//  PasswordHash – bcrypt hash (users.password)
//  RoleID       – users.role, the single role granting this user's capabilities
//  ResetCode    – one-time password reset code, empty when unused
//  VerifyCode   – one-time activation code, empty once confirmed
type User struct {
	ID           uint64
	Email        string
	PasswordHash string
	FullName     string
	RoleID       int
	CreatedBy    uint64
	IsVerified   bool
	IsActive     bool
	IsDeleted    bool
	ResetCode    string
	VerifyCode   string
	VerifiedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

// Role mirrors a row of the `roles` table.
type Role struct {
	ID        int        `json:"role_id"`
	Name      string     `json:"role_name"`
	CreatedBy uint64     `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// RoleCapability is one edge of the role → capability relation.  A role
// grants exactly the capabilities it has edges for.
type RoleCapability struct {
	RoleID       int
	CapabilityID string
}

// AuthToken models a row of `auth_tokens`: one live session.  TokenHash is
// the keyed hash of the refresh token, never the token itself.
type AuthToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	UserAgent string
	IPAddress string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token can no longer be exchanged at now.
func (t AuthToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// UserSummary is a user row joined with its role name, as shown in the user
// listing.
type UserSummary struct {
	ID         uint64     `json:"user_id"`
	RoleID     int        `json:"role_id"`
	RoleName   string     `json:"role_name"`
	FullName   string     `json:"full_name"`
	Email      string     `json:"email"`
	IsActive   bool       `json:"is_active"`
	IsVerified bool       `json:"is_verified"`
	VerifiedAt *time.Time `json:"verified_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at"`
}
