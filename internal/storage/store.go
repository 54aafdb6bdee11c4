// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/groupledger/internal/models"
)

// ErrNotFound is returned when a requested row does not exist or is soft-deleted.
// Every other error returned by a Store is a persistence failure.
var ErrNotFound = errors.New("not found")

// Tx holds the write operations that must be able to run inside one
// transaction. A Store implements Tx directly (each call is its own
// statement); RunAtomically hands out a Tx bound to a single transaction.
type Tx interface {
	// InsertGroup persists a new group. The group.ID, CreatedAt and UpdatedAt
	// fields are populated by the store when empty.
	InsertGroup(ctx context.Context, group *models.Group) error

	// UpdateGroupName renames an active group.
	UpdateGroupName(ctx context.Context, groupID, name string) error

	// SoftDeleteGroup marks an active group as deleted.
	SoftDeleteGroup(ctx context.Context, groupID string) error

	// LockGroup takes a write lock on an active group's row for the rest of
	// the transaction. Transactions that change a group's members or items
	// call it first so their checks and writes are serialized.
	LockGroup(ctx context.Context, groupID string) error

	// ListMemberships lists the memberships of an active group in join order.
	ListMemberships(ctx context.Context, groupID string) ([]models.Membership, error)

	// SumItemAmounts totals the amounts of a group's active items.
	SumItemAmounts(ctx context.Context, groupID string) (int64, error)

	// InsertMemberships adds memberships. Existing (user, group) pairs are
	// left untouched. Returns the number of memberships actually created.
	InsertMemberships(ctx context.Context, memberships []models.Membership) (int, error)

	// UpdateMembershipRole changes the role of an existing membership.
	UpdateMembershipRole(ctx context.Context, groupID, userID string, role models.Role) error

	// DeleteMemberships removes the given users from the group.
	// Returns the number of memberships removed.
	DeleteMemberships(ctx context.Context, groupID string, userIDs []string) (int, error)

	// InsertItem persists a new item row (without its ledger rows).
	// The item.ID, CreatedAt and UpdatedAt fields are populated when empty.
	InsertItem(ctx context.Context, item *models.Item) error

	// InsertCredits persists credit rows for an item, keeping slice order.
	InsertCredits(ctx context.Context, itemID string, credits []models.LedgerEntry) error

	// InsertDebits persists debit rows for an item, keeping slice order.
	InsertDebits(ctx context.Context, itemID string, debits []models.LedgerEntry) error

	// SoftDeleteItems marks active items of a group as deleted.
	// Returns the number of items deleted.
	SoftDeleteItems(ctx context.Context, groupID string, itemIDs []string) (int, error)
}

// Store defines the persistence contract used by the services.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	Tx

	// RunAtomically runs fn inside a single transaction. If fn returns an
	// error the transaction is rolled back and the error is returned as is.
	RunAtomically(ctx context.Context, fn func(tx Tx) error) error

	// GetGroup retrieves an active group by ID.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListGroupsForUser lists the active groups the user belongs to, with the
	// user's role in each.
	ListGroupsForUser(ctx context.Context, userID string) ([]models.GroupSummary, error)

	// GetMembership returns the user's membership in an active group.
	// Returns ErrNotFound when the group is missing, deleted, or the user is
	// not a member.
	GetMembership(ctx context.Context, groupID, userID string) (*models.Membership, error)

	// RunSnapshot runs fn against one consistent view of the database.
	// Writes committed while fn runs are not visible to it.
	RunSnapshot(ctx context.Context, fn func(r LedgerReader) error) error

	LedgerReader

	// ListItems lists the active items of a group, oldest first, with their
	// credit and debit rows.
	ListItems(ctx context.Context, groupID string) ([]models.Item, error)

	UserStore

	// Close releases any resources held by the store.
	Close() error
}

// LedgerReader holds the reads that make up a group's balances.
type LedgerReader interface {
	// ListCurrentMembers lists the user IDs of an active group's members in
	// join order. A missing group yields an empty list.
	ListCurrentMembers(ctx context.Context, groupID string) ([]string, error)

	// SumCreditsByUser totals credit rows per user over active items of an
	// active group, restricted to current members.
	SumCreditsByUser(ctx context.Context, groupID string) (map[string]int64, error)

	// SumDebitsByUser is the debit counterpart of SumCreditsByUser.
	SumDebitsByUser(ctx context.Context, groupID string) (map[string]int64, error)
}

// UserStore holds the user directory operations backing the identity layer.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	// GetUsersByIDs returns a map of user ID to user. Unknown IDs are omitted.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
	// GetUsersByEmails returns a map of email to user. Unknown emails are omitted.
	GetUsersByEmails(ctx context.Context, emails []string) (map[string]*models.User, error)
}
