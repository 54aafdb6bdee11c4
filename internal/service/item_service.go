package service

import (
	"context"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/internal/authz"
	"github.com/mmynk/groupledger/internal/cache"
	"github.com/mmynk/groupledger/internal/calculator"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/money"
	"github.com/mmynk/groupledger/internal/storage"
	"github.com/mmynk/groupledger/pkg/api"
	"github.com/mmynk/groupledger/pkg/api/apiconnect"
)

var _ apiconnect.ItemServiceHandler = (*ItemService)(nil)

// ItemService implements the Connect ItemService.
type ItemService struct {
	store    storage.Store
	guard    *authz.Guard
	balances cache.BalanceCache
}

// NewItemService creates a new ItemService. balances may be nil.
func NewItemService(store storage.Store, balances cache.BalanceCache) *ItemService {
	if balances == nil {
		balances = cache.NopCache{}
	}
	return &ItemService{
		store:    store,
		guard:    authz.NewGuard(store),
		balances: balances,
	}
}

// ListItems lists the group's items, oldest first, with their ledger rows
// and the running total of all amounts.
func (s *ItemService) ListItems(ctx context.Context, req *connect.Request[api.ListItemsRequest]) (*connect.Response[api.ListItemsResponse], error) {
	const op = "ListItems"
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
	items, err := s.store.ListItems(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	out := make([]api.Item, len(items))
	var total int64
	for i := range items {
		out[i] = toAPIItem(&items[i])
		if total, err = money.AddTotal(total, items[i].Amount); err != nil {
			return nil, toConnectError(ctx, op, fmt.Errorf("group %s total: %v", req.Msg.GroupID, err))
		}
	}

	slog.Info("ListItems successful", "group_id", req.Msg.GroupID, "count", len(out))

	return connect.NewResponse(&api.ListItemsResponse{
		Items:        out,
		Total:        total,
		TotalDisplay: money.ToDisplayString(total),
	}), nil
}

// AddItem records an expense. Requires admin. The amount is split evenly
// across the credit users (who paid) and across the debit users (who owe),
// and the item with all of its rows is written in one transaction. The
// group's total may not exceed money.MaxTotal.
func (s *ItemService) AddItem(ctx context.Context, req *connect.Request[api.AddItemRequest]) (*connect.Response[api.AddItemResponse], error) {
	const op = "AddItem"
	userID, err := callerID(ctx)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	groupID := req.Msg.GroupID

	if _, err := s.guard.Require(ctx, userID, groupID, models.RoleAdmin); err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	amount, err := money.ParseMinorUnits(req.Msg.Amount)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	split, err := calculator.ComputeSplit(amount, req.Msg.CreditUserIDs, req.Msg.DebitUserIDs)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	split = split.Collapse()

	item := &models.Item{
		GroupID:    groupID,
		Name:       req.Msg.Name,
		Amount:     amount,
		Attributes: models.ItemAttributes{Note: req.Msg.Note},
		Credits:    split.Credits,
		Debits:     split.Debits,
	}
	err = s.store.RunAtomically(ctx, func(tx storage.Tx) error {
		if err := tx.LockGroup(ctx, groupID); err != nil {
			return err
		}
		memberships, err := tx.ListMemberships(ctx, groupID)
		if err != nil {
			return err
		}
		if err := requireMembers(memberships, req.Msg.CreditUserIDs, req.Msg.DebitUserIDs); err != nil {
			return err
		}
		total, err := tx.SumItemAmounts(ctx, groupID)
		if err != nil {
			return err
		}
		if _, err := money.AddTotal(total, amount); err != nil {
			return err
		}

		if err := tx.InsertItem(ctx, item); err != nil {
			return err
		}
		if err := tx.InsertCredits(ctx, item.ID, item.Credits); err != nil {
			return err
		}
		return tx.InsertDebits(ctx, item.ID, item.Debits)
	})
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	invalidateBalances(ctx, s.balances, groupID)

	slog.Info("Item added",
		"group_id", groupID,
		"item_id", item.ID,
		"user_id", userID,
		"amount", amount,
		"credits_count", len(item.Credits),
		"debits_count", len(item.Debits),
	)

	out := toAPIItem(item)
	return connect.NewResponse(&api.AddItemResponse{Item: &out}), nil
}

// RemoveItems soft-deletes items of a group. Requires admin. Unknown or
// already removed items are skipped.
func (s *ItemService) RemoveItems(ctx context.Context, req *connect.Request[api.RemoveItemsRequest]) (*connect.Response[api.RemoveItemsResponse], error) {
	const op = "RemoveItems"
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
	if len(req.Msg.ItemIDs) == 0 {
		return connect.NewResponse(&api.RemoveItemsResponse{}), nil
	}

	removed, err := s.store.SoftDeleteItems(ctx, req.Msg.GroupID, req.Msg.ItemIDs)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}
	if removed > 0 {
		invalidateBalances(ctx, s.balances, req.Msg.GroupID)
	}

	slog.Info("Items removed", "group_id", req.Msg.GroupID, "user_id", userID, "removed", removed)

	return connect.NewResponse(&api.RemoveItemsResponse{Removed: removed}), nil
}

// requireMembers checks that every listed user is a current member.
func requireMembers(memberships []models.Membership, lists ...[]string) error {
	current := make(map[string]bool, len(memberships))
	for _, m := range memberships {
		current[m.UserID] = true
	}
	for _, ids := range lists {
		for _, id := range ids {
			if !current[id] {
				return fmt.Errorf("%w: user %s is not a member of the group", errInvalidArgument, id)
			}
		}
	}
	return nil
}
