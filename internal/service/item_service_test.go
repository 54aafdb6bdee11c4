package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/money"
	"github.com/mmynk/groupledger/internal/storage"
	"github.com/mmynk/groupledger/pkg/api"
)

func TestDinnerScenario(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	a := env.register(t, "a")
	b := env.register(t, "b")
	c := env.register(t, "c")
	groupID := env.createGroup(t, a, "Dinner club", b, c)

	resp, err := env.items.AddItem(ctx, as(a, &api.AddItemRequest{
		GroupID:       groupID,
		Name:          "Dinner",
		Amount:        "30.00",
		CreditUserIDs: []string{a.id},
		DebitUserIDs:  []string{a.id, b.id, c.id},
	}))
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	item := resp.Msg.Item
	if item.Amount != 3000 || item.AmountDisplay != "30.00" {
		t.Errorf("unexpected amount: %d (%s)", item.Amount, item.AmountDisplay)
	}
	if len(item.Credits) != 1 || item.Credits[0].Amount != 3000 {
		t.Errorf("unexpected credits: %+v", item.Credits)
	}
	for _, d := range item.Debits {
		if d.Amount != 1000 {
			t.Errorf("debit of %s: expected 1000, got %d", d.UserID, d.Amount)
		}
	}

	balances := env.balancesByUser(t, b, groupID)
	want := map[string]int64{a.id: 2000, b.id: -1000, c.id: -1000}
	var sum int64
	for id, w := range want {
		if balances[id].Balance != w {
			t.Errorf("balance of %s: expected %d, got %d", id, w, balances[id].Balance)
		}
		sum += balances[id].Balance
	}
	if sum != 0 {
		t.Errorf("group balances must sum to zero, got %d", sum)
	}
	if balances[a.id].BalanceDisplay != "20.00" || balances[b.id].BalanceDisplay != "(10.00)" {
		t.Errorf("unexpected display strings: %q, %q", balances[a.id].BalanceDisplay, balances[b.id].BalanceDisplay)
	}
	if balances[a.id].Username != "a" {
		t.Errorf("expected username 'a', got %q", balances[a.id].Username)
	}

	settle, err := env.groups.GetBalances(ctx, as(a, &api.GetBalancesRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("GetBalances failed: %v", err)
	}
	if len(settle.Msg.Settlements) != 2 {
		t.Fatalf("expected 2 settlements, got %+v", settle.Msg.Settlements)
	}
	for _, s := range settle.Msg.Settlements {
		if s.ToUserID != a.id || s.Amount != 1000 {
			t.Errorf("unexpected settlement: %+v", s)
		}
	}
}

func TestAddItem_RemainderGoesToFirstPositions(t *testing.T) {
	env := setupTestServer(t)
	a := env.register(t, "a")
	b := env.register(t, "b")
	c := env.register(t, "c")
	groupID := env.createGroup(t, a, "Split", b, c)

	resp, err := env.items.AddItem(context.Background(), as(a, &api.AddItemRequest{
		GroupID:       groupID,
		Name:          "Snacks",
		Amount:        "1.00",
		CreditUserIDs: []string{b.id},
		DebitUserIDs:  []string{a.id, b.id, c.id},
	}))
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	want := []int64{34, 33, 33}
	debits := resp.Msg.Item.Debits
	if len(debits) != len(want) {
		t.Fatalf("expected %d debits, got %d", len(want), len(debits))
	}
	for i, w := range want {
		if debits[i].Amount != w {
			t.Errorf("debit %d: expected %d, got %d", i, w, debits[i].Amount)
		}
	}
}

func TestAddItem_DuplicateParticipantsKeepSums(t *testing.T) {
	env := setupTestServer(t)
	a := env.register(t, "a")
	b := env.register(t, "b")
	groupID := env.createGroup(t, a, "Dupes", b)

	resp, err := env.items.AddItem(context.Background(), as(a, &api.AddItemRequest{
		GroupID:       groupID,
		Name:          "Taxi",
		Amount:        "10.00",
		CreditUserIDs: []string{a.id, a.id},
		DebitUserIDs:  []string{a.id, b.id, a.id},
	}))
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	balances := env.balancesByUser(t, a, groupID)
	// a pays 1000 and owes 334+333, b owes 333.
	if balances[a.id].Balance != 333 || balances[b.id].Balance != -333 {
		t.Errorf("unexpected balances: a=%d b=%d", balances[a.id].Balance, balances[b.id].Balance)
	}
	var debitSum int64
	for _, d := range resp.Msg.Item.Debits {
		debitSum += d.Amount
	}
	if debitSum != 1000 {
		t.Errorf("debits must sum to the amount, got %d", debitSum)
	}
}

func TestAddItem_Errors(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	a := env.register(t, "a")
	member := env.register(t, "member")
	stranger := env.register(t, "stranger")
	groupID := env.createGroup(t, a, "Errors", member)

	tests := []struct {
		name string
		user testUser
		req  *api.AddItemRequest
		code connect.Code
	}{
		{
			name: "payee not a member",
			user: a,
			req:  &api.AddItemRequest{GroupID: groupID, Name: "x", Amount: "1.00", CreditUserIDs: []string{a.id}, DebitUserIDs: []string{stranger.id}},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "negative amount",
			user: a,
			req:  &api.AddItemRequest{GroupID: groupID, Name: "x", Amount: "-5", CreditUserIDs: []string{a.id}, DebitUserIDs: []string{a.id}},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "not a number",
			user: a,
			req:  &api.AddItemRequest{GroupID: groupID, Name: "x", Amount: "lots", CreditUserIDs: []string{a.id}, DebitUserIDs: []string{a.id}},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "no payees",
			user: a,
			req:  &api.AddItemRequest{GroupID: groupID, Name: "x", Amount: "1.00", CreditUserIDs: []string{a.id}},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "amount above the per-item limit",
			user: a,
			req:  &api.AddItemRequest{GroupID: groupID, Name: "x", Amount: "10000000000000.01", CreditUserIDs: []string{a.id}, DebitUserIDs: []string{a.id}},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "amount beyond int64",
			user: a,
			req:  &api.AddItemRequest{GroupID: groupID, Name: "x", Amount: "92233720368547758.07", CreditUserIDs: []string{a.id}, DebitUserIDs: []string{a.id}},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "plain member cannot add",
			user: member,
			req:  &api.AddItemRequest{GroupID: groupID, Name: "x", Amount: "1.00", CreditUserIDs: []string{member.id}, DebitUserIDs: []string{member.id}},
			code: connect.CodePermissionDenied,
		},
		{
			name: "caller not a member",
			user: stranger,
			req:  &api.AddItemRequest{GroupID: groupID, Name: "x", Amount: "1.00", CreditUserIDs: []string{a.id}, DebitUserIDs: []string{a.id}},
			code: connect.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.items.AddItem(ctx, as(tt.user, tt.req))
			assertCode(t, err, tt.code)
		})
	}

	// Nothing was written by the failed calls.
	list, err := env.items.ListItems(ctx, as(a, &api.ListItemsRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(list.Msg.Items) != 0 {
		t.Errorf("expected no items, got %d", len(list.Msg.Items))
	}
}

func TestAddItem_GroupTotalLimit(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	a := env.register(t, "a")
	b := env.register(t, "b")
	groupID := env.createGroup(t, a, "Big spenders", b)

	// Seed the group close to its limit directly in storage.
	seeded := money.MaxTotal - 100
	item := &models.Item{GroupID: groupID, Name: "Seed", Amount: seeded}
	err := env.store.RunAtomically(ctx, func(tx storage.Tx) error {
		if err := tx.InsertItem(ctx, item); err != nil {
			return err
		}
		if err := tx.InsertCredits(ctx, item.ID, []models.LedgerEntry{{UserID: a.id, Amount: seeded}}); err != nil {
			return err
		}
		return tx.InsertDebits(ctx, item.ID, []models.LedgerEntry{{UserID: b.id, Amount: seeded}})
	})
	if err != nil {
		t.Fatalf("seeding item failed: %v", err)
	}

	add := func(amount string) error {
		_, err := env.items.AddItem(ctx, as(a, &api.AddItemRequest{
			GroupID: groupID, Name: "item " + amount, Amount: amount,
			CreditUserIDs: []string{a.id}, DebitUserIDs: []string{b.id},
		}))
		return err
	}

	if err := add("1.00"); err != nil {
		t.Fatalf("AddItem up to the limit failed: %v", err)
	}
	assertCode(t, add("0.01"), connect.CodeInvalidArgument)

	list, err := env.items.ListItems(ctx, as(a, &api.ListItemsRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if list.Msg.Total != money.MaxTotal {
		t.Errorf("expected total %d, got %d", money.MaxTotal, list.Msg.Total)
	}

	balances := env.balancesByUser(t, a, groupID)
	if balances[a.id].Balance != money.MaxTotal || balances[b.id].Balance != -money.MaxTotal {
		t.Errorf("unexpected balances at the limit: a=%d b=%d", balances[a.id].Balance, balances[b.id].Balance)
	}
}

func TestListItems_RunningTotal(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	a := env.register(t, "a")
	groupID := env.createGroup(t, a, "Totals")

	for _, amount := range []string{"19.99", "0.01", "5"} {
		if _, err := env.items.AddItem(ctx, as(a, &api.AddItemRequest{
			GroupID: groupID, Name: "item " + amount, Amount: amount,
			CreditUserIDs: []string{a.id}, DebitUserIDs: []string{a.id},
		})); err != nil {
			t.Fatalf("AddItem(%s) failed: %v", amount, err)
		}
	}

	resp, err := env.items.ListItems(ctx, as(a, &api.ListItemsRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(resp.Msg.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(resp.Msg.Items))
	}
	if resp.Msg.Total != 2500 || resp.Msg.TotalDisplay != "25.00" {
		t.Errorf("unexpected total: %d (%s)", resp.Msg.Total, resp.Msg.TotalDisplay)
	}
}

func TestRemoveItems(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	a := env.register(t, "a")
	b := env.register(t, "b")
	groupID := env.createGroup(t, a, "Removal", b)

	added, err := env.items.AddItem(ctx, as(a, &api.AddItemRequest{
		GroupID: groupID, Name: "Groceries", Amount: "40.00",
		CreditUserIDs: []string{b.id}, DebitUserIDs: []string{a.id, b.id},
	}))
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	itemID := added.Msg.Item.ID

	t.Run("member is forbidden", func(t *testing.T) {
		_, err := env.items.RemoveItems(ctx, as(b, &api.RemoveItemsRequest{GroupID: groupID, ItemIDs: []string{itemID}}))
		assertCode(t, err, connect.CodePermissionDenied)
	})

	t.Run("owner removes", func(t *testing.T) {
		resp, err := env.items.RemoveItems(ctx, as(a, &api.RemoveItemsRequest{GroupID: groupID, ItemIDs: []string{itemID, "unknown"}}))
		if err != nil {
			t.Fatalf("RemoveItems failed: %v", err)
		}
		if resp.Msg.Removed != 1 {
			t.Errorf("expected 1 removed, got %d", resp.Msg.Removed)
		}

		balances := env.balancesByUser(t, a, groupID)
		for id, bal := range balances {
			if bal.Balance != 0 {
				t.Errorf("balance of %s should be zero after removal, got %d", id, bal.Balance)
			}
		}
	})
}
