package service

import (
	"context"
	"log/slog"

	"github.com/mmynk/groupledger/internal/auth"
	"github.com/mmynk/groupledger/internal/cache"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/money"
	"github.com/mmynk/groupledger/pkg/api"
)

func toAPIGroup(g *models.Group) *api.Group {
	return &api.Group{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Attributes.Description,
		Currency:    g.Attributes.Currency,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

func toAPIUser(u *models.User) *api.User {
	return &api.User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

func toAPIEntries(entries []models.LedgerEntry) []api.LedgerEntry {
	out := make([]api.LedgerEntry, len(entries))
	for i, e := range entries {
		out[i] = api.LedgerEntry{
			UserID:        e.UserID,
			Amount:        e.Amount,
			AmountDisplay: money.ToDisplayString(e.Amount),
		}
	}
	return out
}

func toAPIItem(item *models.Item) api.Item {
	return api.Item{
		ID:            item.ID,
		Name:          item.Name,
		Amount:        item.Amount,
		AmountDisplay: money.ToDisplayString(item.Amount),
		Note:          item.Attributes.Note,
		Credits:       toAPIEntries(item.Credits),
		Debits:        toAPIEntries(item.Debits),
		CreatedAt:     item.CreatedAt,
	}
}

// describeMembers joins memberships with directory info. Users missing from
// the directory keep an empty username.
func describeMembers(ctx context.Context, dir *auth.Directory, memberships []models.Membership) ([]api.Member, error) {
	ids := make([]string, len(memberships))
	for i, m := range memberships {
		ids[i] = m.UserID
	}
	info, err := dir.Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	members := make([]api.Member, len(memberships))
	for i, m := range memberships {
		members[i] = api.Member{
			UserID:   m.UserID,
			Username: info[m.UserID].Username,
			Email:    info[m.UserID].Email,
			Role:     m.Role.String(),
		}
	}
	return members, nil
}

// invalidateBalances drops cached balances after a write. Failures are logged;
// the cache TTL bounds how long a stale entry survives.
func invalidateBalances(ctx context.Context, balances cache.BalanceCache, groupID string) {
	if err := balances.Invalidate(ctx, groupID); err != nil {
		slog.WarnContext(ctx, "Failed to invalidate cached balances", "group_id", groupID, "error", err)
	}
}
