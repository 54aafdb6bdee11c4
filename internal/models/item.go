package models

// ItemAttributesVersion is the current schema version of ItemAttributes.
const ItemAttributesVersion = 1

// Item represents one expense event inside a group.
type Item struct {
	// ID is the unique identifier for the item (UUID format).
	ID string

	// GroupID is the group that owns the item.
	GroupID string

	// Name describes the expense (e.g., "Dinner", "Taxi").
	Name string

	// Amount is the total cost in minor units.
	Amount int64

	// Attributes holds optional, versioned item settings.
	Attributes ItemAttributes

	// Credits are the payers' shares, in the order the payers were supplied.
	Credits []LedgerEntry

	// Debits are the payees' shares, in the order the payees were supplied.
	Debits []LedgerEntry

	CreatedAt int64
	UpdatedAt int64
}

// ItemAttributes is the typed replacement for the item's free-form data column.
type ItemAttributes struct {
	Version int    `json:"v"`
	Note    string `json:"note,omitempty"`
}

// LedgerEntry is a single credit or debit row of an item.
type LedgerEntry struct {
	UserID string
	Amount int64 // minor units
}

// Balance is a member's net position within a group.
// Positive = owed money, negative = owes money, zero = settled.
type Balance struct {
	UserID  string `json:"user_id"`
	Credit  int64  `json:"credit"` // total paid across all items
	Debit   int64  `json:"debit"`  // total consumed across all items
	Balance int64  `json:"balance"`
}
