package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/internal/auth"
	"github.com/mmynk/groupledger/internal/authz"
	"github.com/mmynk/groupledger/internal/cache"
	"github.com/mmynk/groupledger/internal/calculator"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/money"
	"github.com/mmynk/groupledger/internal/storage"
	"github.com/mmynk/groupledger/pkg/api"
	"github.com/mmynk/groupledger/pkg/api/apiconnect"
)

var _ apiconnect.GroupServiceHandler = (*GroupService)(nil)

// GroupService implements the Connect GroupService.
type GroupService struct {
	store     storage.Store
	guard     *authz.Guard
	directory *auth.Directory
	balances  cache.BalanceCache
}

// NewGroupService creates a new GroupService with the given storage backend.
// balances may be nil, in which case nothing is cached.
func NewGroupService(store storage.Store, directory *auth.Directory, balances cache.BalanceCache) *GroupService {
	if balances == nil {
		balances = cache.NopCache{}
	}
	return &GroupService{
		store:     store,
		guard:     authz.NewGuard(store),
		directory: directory,
		balances:  balances,
	}
}

// CreateGroup creates a group owned by the caller.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	const op = "CreateGroup"
	userID, err := callerID(ctx)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	group := &models.Group{
		Name: req.Msg.Name,
		Attributes: models.GroupAttributes{
			Description: req.Msg.Description,
			Currency:    req.Msg.Currency,
		},
	}
	err = s.store.RunAtomically(ctx, func(tx storage.Tx) error {
		if err := tx.InsertGroup(ctx, group); err != nil {
			return err
		}
		_, err := tx.InsertMemberships(ctx, []models.Membership{
			{UserID: userID, GroupID: group.ID, Role: models.RoleOwner},
		})
		return err
	})
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	slog.Info("Group created", "group_id", group.ID, "user_id", userID)

	return connect.NewResponse(&api.CreateGroupResponse{Group: toAPIGroup(group)}), nil
}

// ListGroups lists the caller's groups with the caller's role in each.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	const op = "ListGroups"
	userID, err := callerID(ctx)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	groups, err := s.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	out := make([]api.GroupSummary, len(groups))
	for i, g := range groups {
		out[i] = api.GroupSummary{ID: g.ID, Name: g.Name, Role: g.Role.String()}
	}

	slog.Info("ListGroups successful", "user_id", userID, "count", len(out))

	return connect.NewResponse(&api.ListGroupsResponse{Groups: out}), nil
}

// GetGroup returns a group with its members.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	const op = "GetGroup"
	userID, err := callerID(ctx)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	caller, err := s.guard.Require(ctx, userID, req.Msg.GroupID, models.RoleMember)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	group, err := s.store.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	memberships, err := s.store.ListMemberships(ctx, group.ID)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	members, err := describeMembers(ctx, s.directory, memberships)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	return connect.NewResponse(&api.GetGroupResponse{
		Group:   toAPIGroup(group),
		Members: members,
		Role:    caller.Role.String(),
	}), nil
}

// UpdateGroup renames a group. Requires admin.
func (s *GroupService) UpdateGroup(ctx context.Context, req *connect.Request[api.UpdateGroupRequest]) (*connect.Response[api.UpdateGroupResponse], error) {
	const op = "UpdateGroup"
	userID, err := callerID(ctx)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	if _, err := s.guard.Require(ctx, userID, req.Msg.GroupID, models.RoleAdmin); err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	if err := s.store.UpdateGroupName(ctx, req.Msg.GroupID, req.Msg.Name); err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	group, err := s.store.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	slog.Info("Group updated", "group_id", group.ID, "user_id", userID)

	return connect.NewResponse(&api.UpdateGroupResponse{Group: toAPIGroup(group)}), nil
}

// DeleteGroup soft-deletes a group. Requires admin.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[api.DeleteGroupRequest]) (*connect.Response[api.DeleteGroupResponse], error) {
	const op = "DeleteGroup"
	userID, err := callerID(ctx)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	if _, err := s.guard.Require(ctx, userID, req.Msg.GroupID, models.RoleAdmin); err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	if err := s.store.SoftDeleteGroup(ctx, req.Msg.GroupID); err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	invalidateBalances(ctx, s.balances, req.Msg.GroupID)

	slog.Info("Group deleted", "group_id", req.Msg.GroupID, "user_id", userID)

	return connect.NewResponse(&api.DeleteGroupResponse{}), nil
}

// GetBalances reports every current member's balance and a set of payments
// that would settle the group.
func (s *GroupService) GetBalances(ctx context.Context, req *connect.Request[api.GetBalancesRequest]) (*connect.Response[api.GetBalancesResponse], error) {
	const op = "GetBalances"
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
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	balances, err := s.computeBalances(ctx, groupID)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	ids := make([]string, len(balances))
	for i, b := range balances {
		ids[i] = b.UserID
	}
	info, err := s.directory.Lookup(ctx, ids)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	out := make([]api.Balance, len(balances))
	for i, b := range balances {
		out[i] = api.Balance{
			UserID:         b.UserID,
			Username:       info[b.UserID].Username,
			Credit:         b.Credit,
			Debit:          b.Debit,
			Balance:        b.Balance,
			BalanceDisplay: money.ToDisplayString(b.Balance),
		}
	}

	edges := calculator.SimplifyDebts(balances)
	settlements := make([]api.Settlement, len(edges))
	for i, e := range edges {
		settlements[i] = api.Settlement{
			FromUserID:    e.From,
			ToUserID:      e.To,
			Amount:        e.Amount,
			AmountDisplay: money.ToDisplayString(e.Amount),
		}
	}

	slog.Info("GetBalances successful",
		"group_id", groupID,
		"members_count", len(out),
		"settlements_count", len(settlements),
	)

	return connect.NewResponse(&api.GetBalancesResponse{
		Balances:    out,
		Settlements: settlements,
		Currency:    group.Attributes.Currency,
	}), nil
}

// computeBalances aggregates the group's ledger, going through the cache.
// Members and both sums are read from one snapshot, and the result is cached
// under the generation seen before the read.
func (s *GroupService) computeBalances(ctx context.Context, groupID string) ([]models.Balance, error) {
	lookup, err := s.balances.GetBalances(ctx, groupID)
	cacheable := err == nil
	if err != nil {
		slog.WarnContext(ctx, "Balance cache read failed", "group_id", groupID, "error", err)
	} else if lookup.Found {
		return lookup.Balances, nil
	}

	var balances []models.Balance
	err = s.store.RunSnapshot(ctx, func(r storage.LedgerReader) error {
		members, err := r.ListCurrentMembers(ctx, groupID)
		if err != nil {
			return err
		}
		credits, err := r.SumCreditsByUser(ctx, groupID)
		if err != nil {
			return err
		}
		debits, err := r.SumDebitsByUser(ctx, groupID)
		if err != nil {
			return err
		}
		balances = calculator.ComputeBalances(members, credits, debits)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := s.balances.SetBalances(ctx, groupID, lookup.Generation, balances); err != nil {
			slog.WarnContext(ctx, "Balance cache write failed", "group_id", groupID, "error", err)
		}
	}
	return balances, nil
}
