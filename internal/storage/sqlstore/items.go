package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/groupledger/internal/models"
)

// Ledger tables. Only these constants are ever interpolated into SQL.
const (
	creditsTable = "credits"
	debitsTable  = "debits"
)

// InsertItem persists a new item row.
func (q *queries) InsertItem(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt == 0 {
		item.CreatedAt = time.Now().Unix()
	}
	item.UpdatedAt = item.CreatedAt
	if item.Attributes.Version == 0 {
		item.Attributes.Version = models.ItemAttributesVersion
	}

	data, err := json.Marshal(item.Attributes)
	if err != nil {
		return fmt.Errorf("failed to encode item attributes: %w", err)
	}

	_, err = q.exec(ctx,
		`INSERT INTO items (id, group_id, name, amount, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.GroupID, item.Name, item.Amount, string(data), item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

// InsertCredits persists credit rows for an item.
func (q *queries) InsertCredits(ctx context.Context, itemID string, credits []models.LedgerEntry) error {
	return q.insertEntries(ctx, creditsTable, itemID, credits)
}

// InsertDebits persists debit rows for an item.
func (q *queries) InsertDebits(ctx context.Context, itemID string, debits []models.LedgerEntry) error {
	return q.insertEntries(ctx, debitsTable, itemID, debits)
}

func (q *queries) insertEntries(ctx context.Context, table, itemID string, entries []models.LedgerEntry) error {
	stmt := "INSERT INTO " + table + " (user_id, item_id, amount, seq) VALUES (?, ?, ?, ?)"
	for i, e := range entries {
		if _, err := q.exec(ctx, stmt, e.UserID, itemID, e.Amount, i); err != nil {
			return fmt.Errorf("failed to insert %s row: %w", table, err)
		}
	}
	return nil
}

// SoftDeleteItems marks active items of a group as deleted.
func (q *queries) SoftDeleteItems(ctx context.Context, groupID string, itemIDs []string) (int, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	now := time.Now().Unix()
	res, err := q.exec(ctx,
		`UPDATE items SET deleted_at = ?, updated_at = ?
		 WHERE group_id = ? AND deleted_at IS NULL AND id IN (`+placeholders(len(itemIDs))+")",
		stringArgs([]any{now, now, groupID}, itemIDs)...,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}

// ListItems lists the active items of an active group with their ledger rows.
func (q *queries) ListItems(ctx context.Context, groupID string) ([]models.Item, error) {
	rows, err := q.query(ctx,
		`SELECT i.id, i.group_id, i.name, i.amount, i.data, i.created_at, i.updated_at
		 FROM items i
		 JOIN groups g ON g.id = i.group_id
		 WHERE i.group_id = ? AND i.deleted_at IS NULL AND g.deleted_at IS NULL
		 ORDER BY i.created_at, i.id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	index := make(map[string]int)
	for rows.Next() {
		var item models.Item
		var data string
		if err := rows.Scan(&item.ID, &item.GroupID, &item.Name, &item.Amount, &data, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &item.Attributes); err != nil {
			return nil, fmt.Errorf("failed to decode attributes of item %s: %w", item.ID, err)
		}
		index[item.ID] = len(items)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	if len(items) == 0 {
		return items, nil
	}

	credits, err := q.listEntries(ctx, creditsTable, groupID)
	if err != nil {
		return nil, err
	}
	for itemID, entries := range credits {
		if i, ok := index[itemID]; ok {
			items[i].Credits = entries
		}
	}

	debits, err := q.listEntries(ctx, debitsTable, groupID)
	if err != nil {
		return nil, err
	}
	for itemID, entries := range debits {
		if i, ok := index[itemID]; ok {
			items[i].Debits = entries
		}
	}

	return items, nil
}

// listEntries loads the ledger rows of every active item of a group, keyed by
// item ID and kept in insertion position order.
func (q *queries) listEntries(ctx context.Context, table, groupID string) (map[string][]models.LedgerEntry, error) {
	rows, err := q.query(ctx,
		`SELECT e.item_id, e.user_id, e.amount
		 FROM `+table+` e
		 JOIN items i ON i.id = e.item_id
		 WHERE i.group_id = ? AND i.deleted_at IS NULL
		 ORDER BY e.item_id, e.seq`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	entries := make(map[string][]models.LedgerEntry)
	for rows.Next() {
		var itemID string
		var e models.LedgerEntry
		if err := rows.Scan(&itemID, &e.UserID, &e.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		entries[itemID] = append(entries[itemID], e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", table, err)
	}
	return entries, nil
}

// SumItemAmounts totals the amounts of a group's active items.
func (q *queries) SumItemAmounts(ctx context.Context, groupID string) (int64, error) {
	var total int64
	err := q.queryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM items WHERE group_id = ? AND deleted_at IS NULL",
		groupID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum item amounts: %w", err)
	}
	return total, nil
}

// SumCreditsByUser totals credits per current member over active items.
func (q *queries) SumCreditsByUser(ctx context.Context, groupID string) (map[string]int64, error) {
	return q.sumByUser(ctx, creditsTable, groupID)
}

// SumDebitsByUser totals debits per current member over active items.
func (q *queries) SumDebitsByUser(ctx context.Context, groupID string) (map[string]int64, error) {
	return q.sumByUser(ctx, debitsTable, groupID)
}

func (q *queries) sumByUser(ctx context.Context, table, groupID string) (map[string]int64, error) {
	rows, err := q.query(ctx,
		`SELECT e.user_id, COALESCE(SUM(e.amount), 0)
		 FROM `+table+` e
		 JOIN items i ON i.id = e.item_id
		 JOIN groups g ON g.id = i.group_id
		 JOIN group_memberships m ON m.group_id = i.group_id AND m.user_id = e.user_id
		 WHERE i.group_id = ? AND i.deleted_at IS NULL AND g.deleted_at IS NULL
		 GROUP BY e.user_id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sum %s: %w", table, err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var userID string
		var total int64
		if err := rows.Scan(&userID, &total); err != nil {
			return nil, fmt.Errorf("failed to scan %s total: %w", table, err)
		}
		totals[userID] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s totals: %w", table, err)
	}
	return totals, nil
}
