package service

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/internal/auth"
	"github.com/mmynk/groupledger/internal/authz"
	"github.com/mmynk/groupledger/internal/cache"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
	"github.com/mmynk/groupledger/pkg/api"
	"github.com/mmynk/groupledger/pkg/api/apiconnect"
)

var _ apiconnect.MemberServiceHandler = (*MemberService)(nil)

// MemberService implements the Connect MemberService.
//
// Members only change through this service. Balances are computed over
// current members, so every membership change drops the cached balances.
type MemberService struct {
	store     storage.Store
	guard     *authz.Guard
	directory *auth.Directory
	balances  cache.BalanceCache
}

// NewMemberService creates a new MemberService. balances may be nil.
func NewMemberService(store storage.Store, directory *auth.Directory, balances cache.BalanceCache) *MemberService {
	if balances == nil {
		balances = cache.NopCache{}
	}
	return &MemberService{
		store:     store,
		guard:     authz.NewGuard(store),
		directory: directory,
		balances:  balances,
	}
}

// ListMembers lists the members of a group in join order.
func (s *MemberService) ListMembers(ctx context.Context, req *connect.Request[api.ListMembersRequest]) (*connect.Response[api.ListMembersResponse], error) {
	const op = "ListMembers"
	userID, err := callerID(ctx)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	if _, err := s.guard.Require(ctx, userID, req.Msg.GroupID, models.RoleMember); err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	memberships, err := s.store.ListMemberships(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	members, err := describeMembers(ctx, s.directory, memberships)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	return connect.NewResponse(&api.ListMembersResponse{Members: members}), nil
}

// AddMembers adds users by email. Existing members keep their current role
// and emails without an account are reported back. Requires admin, and the
// caller cannot grant a role above their own.
func (s *MemberService) AddMembers(ctx context.Context, req *connect.Request[api.AddMembersRequest]) (*connect.Response[api.AddMembersResponse], error) {
	const op = "AddMembers"
	userID, err := callerID(ctx)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	groupID := req.Msg.GroupID

	actor, err := s.guard.Require(ctx, userID, groupID, models.RoleAdmin)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	if len(req.Msg.Members) == 0 {
		return connect.NewResponse(&api.AddMembersResponse{}), nil
	}

	// The last entry for an email wins.
	roles := make(map[string]models.Role, len(req.Msg.Members))
	emails := make([]string, 0, len(req.Msg.Members))
	for _, m := range req.Msg.Members {
		role, err := models.ParseRole(m.Role)
		if err != nil {
			return nil, toConnectError(ctx, op, fmt.Errorf("%w: %v", errInvalidArgument, err))
		}
		if !authz.CanAssign(actor.Role, role) {
			return nil, toConnectError(ctx, op, fmt.Errorf("%w: cannot grant %s", authz.ErrForbidden, role))
		}
		email := auth.NormalizeEmail(m.Email)
		if _, seen := roles[email]; !seen {
			emails = append(emails, email)
		}
		roles[email] = role
	}

	ids, unknown, err := s.directory.ResolveEmails(ctx, emails)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	memberships := make([]models.Membership, 0, len(ids))
	for _, email := range emails {
		if id, ok := ids[email]; ok {
			memberships = append(memberships, models.Membership{UserID: id, GroupID: groupID, Role: roles[email]})
		}
	}

	added := 0
	if len(memberships) > 0 {
		err = s.store.RunAtomically(ctx, func(tx storage.Tx) error {
			n, err := tx.InsertMemberships(ctx, memberships)
			added = n
			return err
		})
		if err != nil {
			return nil, toConnectError(ctx, op, err)
		}
		invalidateBalances(ctx, s.balances, groupID)
	}

	slog.Info("Members added",
		"group_id", groupID,
		"user_id", userID,
		"added", added,
		"unknown_count", len(unknown),
	)

	return connect.NewResponse(&api.AddMembersResponse{Added: added, UnknownEmails: unknown}), nil
}

// RemoveMembers removes users from a group. Requires admin; members ranked
// above the caller cannot be removed, and the last owner always stays.
func (s *MemberService) RemoveMembers(ctx context.Context, req *connect.Request[api.RemoveMembersRequest]) (*connect.Response[api.RemoveMembersResponse], error) {
	const op = "RemoveMembers"
	userID, err := callerID(ctx)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	groupID := req.Msg.GroupID

	actor, err := s.guard.Require(ctx, userID, groupID, models.RoleAdmin)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	if len(req.Msg.UserIDs) == 0 {
		return connect.NewResponse(&api.RemoveMembersResponse{}), nil
	}

	removed := 0
	err = s.store.RunAtomically(ctx, func(tx storage.Tx) error {
		if err := tx.LockGroup(ctx, groupID); err != nil {
			return err
		}
		current, err := membershipRoles(ctx, tx, groupID)
		if err != nil {
			return err
		}
		remaining := maps.Clone(current)
		for _, id := range req.Msg.UserIDs {
			role, ok := current[id]
			if !ok {
				continue
			}
			if !authz.CanAssign(actor.Role, role) {
				return fmt.Errorf("%w: cannot remove %s %s", authz.ErrForbidden, role, id)
			}
			delete(remaining, id)
		}
		if countOwners(current) > 0 && countOwners(remaining) == 0 {
			return errLastOwner
		}

		removed, err = tx.DeleteMemberships(ctx, groupID, req.Msg.UserIDs)
		return err
	})
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	if removed > 0 {
		invalidateBalances(ctx, s.balances, groupID)
	}

	slog.Info("Members removed", "group_id", groupID, "user_id", userID, "removed", removed)

	return connect.NewResponse(&api.RemoveMembersResponse{Removed: removed}), nil
}

// UpdateMemberRoles changes roles of existing members in one transaction.
// Requires admin; the caller can neither grant nor take away a role above
// their own.
func (s *MemberService) UpdateMemberRoles(ctx context.Context, req *connect.Request[api.UpdateMemberRolesRequest]) (*connect.Response[api.UpdateMemberRolesResponse], error) {
	const op = "UpdateMemberRoles"
	userID, err := callerID(ctx)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	groupID := req.Msg.GroupID

	actor, err := s.guard.Require(ctx, userID, groupID, models.RoleAdmin)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	if len(req.Msg.Members) == 0 {
		return connect.NewResponse(&api.UpdateMemberRolesResponse{}), nil
	}

	err = s.store.RunAtomically(ctx, func(tx storage.Tx) error {
		if err := tx.LockGroup(ctx, groupID); err != nil {
			return err
		}
		current, err := membershipRoles(ctx, tx, groupID)
		if err != nil {
			return err
		}
		updated := maps.Clone(current)
		for _, m := range req.Msg.Members {
			role, err := models.ParseRole(m.Role)
			if err != nil {
				return fmt.Errorf("%w: %v", errInvalidArgument, err)
			}
			old, ok := current[m.UserID]
			if !ok {
				return fmt.Errorf("%w: user %s is not a member", errInvalidArgument, m.UserID)
			}
			if !authz.CanAssign(actor.Role, role) || !authz.CanAssign(actor.Role, old) {
				return fmt.Errorf("%w: cannot change %s from %s to %s", authz.ErrForbidden, m.UserID, old, role)
			}
			updated[m.UserID] = role
		}
		if countOwners(updated) == 0 {
			return errLastOwner
		}

		for _, m := range req.Msg.Members {
			if err := tx.UpdateMembershipRole(ctx, groupID, m.UserID, updated[m.UserID]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	slog.Info("Member roles updated", "group_id", groupID, "user_id", userID, "count", len(req.Msg.Members))

	return connect.NewResponse(&api.UpdateMemberRolesResponse{}), nil
}

// LeaveGroup removes the caller from a group. The last owner cannot leave.
func (s *MemberService) LeaveGroup(ctx context.Context, req *connect.Request[api.LeaveGroupRequest]) (*connect.Response[api.LeaveGroupResponse], error) {
	const op = "LeaveGroup"
	userID, err := callerID(ctx)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	groupID := req.Msg.GroupID

	if _, err := s.guard.Require(ctx, userID, groupID, models.RoleMember); err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	err = s.store.RunAtomically(ctx, func(tx storage.Tx) error {
		if err := tx.LockGroup(ctx, groupID); err != nil {
			return err
		}
		current, err := membershipRoles(ctx, tx, groupID)
		if err != nil {
			return err
		}
		role, ok := current[userID]
		if !ok {
			return fmt.Errorf("%w: user %s already left group %s", authz.ErrNotFound, userID, groupID)
		}
		if role == models.RoleOwner && countOwners(current) <= 1 {
			return errLastOwner
		}
		_, err = tx.DeleteMemberships(ctx, groupID, []string{userID})
		return err
	})
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	invalidateBalances(ctx, s.balances, groupID)

	slog.Info("Member left group", "group_id", groupID, "user_id", userID)

	return connect.NewResponse(&api.LeaveGroupResponse{}), nil
}

func membershipRoles(ctx context.Context, tx storage.Tx, groupID string) (map[string]models.Role, error) {
	memberships, err := tx.ListMemberships(ctx, groupID)
	if err != nil {
		return nil, err
	}
	roles := make(map[string]models.Role, len(memberships))
	for _, m := range memberships {
		roles[m.UserID] = m.Role
	}
	return roles, nil
}

func countOwners(roles map[string]models.Role) int {
	n := 0
	for _, r := range roles {
		if r == models.RoleOwner {
			n++
		}
	}
	return n
}
