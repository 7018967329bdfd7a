package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RoleStore resolves a user's role and that role's granted capabilities.
// repository.RoleRepo implements it.
type RoleStore interface {
	RoleOfUser(ctx context.Context, userID uint64) (int, error)
	CapabilityIDs(ctx context.Context, roleID int) ([]string, error)
}

// Checker answers "may this user do X".  Every call re-reads the role and
// its edges; there is no cache.
type Checker struct {
	store RoleStore
}

func NewChecker(store RoleStore) *Checker {
	return &Checker{store: store}
}

// Can reports whether userID's role holds every capability in required.
// A missing user row yields (false, nil).  Soft-deleted users are not
// filtered here.
func (c *Checker) Can(ctx context.Context, userID uint64, required ...string) (bool, error) {
	granted, err := c.Capabilities(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	set := make(map[string]struct{}, len(granted))
	for _, id := range granted {
		set[id] = struct{}{}
	}
	for _, id := range required {
		if _, ok := set[id]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// Capabilities returns the capability ids granted to userID's role.  It
// returns sql.ErrNoRows when the user does not exist.
func (c *Checker) Capabilities(ctx context.Context, userID uint64) ([]string, error) {
	roleID, err := c.store.RoleOfUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("resolving role of user %d: %w", userID, err)
	}
	caps, err := c.store.CapabilityIDs(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("loading capabilities of role %d: %w", roleID, err)
	}
	return caps, nil
}
