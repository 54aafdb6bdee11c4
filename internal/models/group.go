package models

// GroupAttributesVersion is the current schema version of GroupAttributes.
const GroupAttributesVersion = 1

// Group represents a set of members sharing expenses.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Ski Trip").
	Name string

	// Attributes holds optional, versioned group settings.
	Attributes GroupAttributes

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last change to the group row.
	// Soft-deleted groups are never loaded.
	UpdatedAt int64
}

// GroupAttributes is the typed replacement for the group's free-form data column.
type GroupAttributes struct {
	Version     int    `json:"v"`
	Description string `json:"description,omitempty"`
	// Currency is an ISO 4217 code used only for display.
	Currency string `json:"currency,omitempty"`
}

// GroupSummary is a group as seen by one of its members.
type GroupSummary struct {
	ID   string
	Name string
	Role Role
}
