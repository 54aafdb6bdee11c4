// Package authz decides whether a user may act on a group.
//
// Every group-scoped operation goes through Guard.Require. A group that is
// missing, soft-deleted or that the caller does not belong to all produce the
// same ErrNotFound, so callers cannot learn whether groups they are not
// part of exist.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
)

var (
	// ErrNotFound is returned when the group does not exist, is deleted, or
	// the caller is not a member of it.
	ErrNotFound = errors.New("group not found")

	// ErrForbidden is returned when the caller is a member but holds a role
	// below the one required.
	ErrForbidden = errors.New("insufficient role")
)

// MembershipReader is the slice of storage.Store the guard needs.
type MembershipReader interface {
	GetMembership(ctx context.Context, groupID, userID string) (*models.Membership, error)
}

// RoleAllowed reports whether actual satisfies required under
// member < admin < owner. It panics on a role outside that set.
func RoleAllowed(actual, required models.Role) bool {
	if !actual.Valid() {
		panic(fmt.Sprintf("authz: invalid role %d", int(actual)))
	}
	if !required.Valid() {
		panic(fmt.Sprintf("authz: invalid required role %d", int(required)))
	}
	return actual >= required
}

// CanAssign reports whether an actor holding role actor may grant target.
func CanAssign(actor, target models.Role) bool {
	return RoleAllowed(actor, target)
}

// Guard checks group membership and roles against the store.
type Guard struct {
	store MembershipReader
}

// NewGuard creates a Guard backed by store.
func NewGuard(store MembershipReader) *Guard {
	return &Guard{store: store}
}

// IsMember reports whether userID belongs to the active group groupID.
func (g *Guard) IsMember(ctx context.Context, userID, groupID string) (bool, error) {
	_, err := g.store.GetMembership(ctx, groupID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return true, nil
}

// Require returns the caller's membership when it holds at least the
// required role in the group.
func (g *Guard) Require(ctx context.Context, userID, groupID string, required models.Role) (*models.Membership, error) {
	if userID == "" || groupID == "" {
		return nil, ErrNotFound
	}

	m, err := g.store.GetMembership(ctx, groupID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	if !RoleAllowed(m.Role, required) {
		return nil, fmt.Errorf("%w: %s required, have %s", ErrForbidden, required, m.Role)
	}
	return m, nil
}
