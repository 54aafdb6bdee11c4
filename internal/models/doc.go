// Package models defines the core domain models for groupledger.
//
// # Entities
//
//   - Group: a set of people sharing expenses. Soft-deleted, never removed.
//   - Membership: links a user to a group with a Role (member < admin < owner).
//   - Item: one expense event inside a group, amount in minor units.
//   - LedgerEntry: one credit (paid) or debit (consumed) row of an item.
//   - Balance: a member's net position in a group (credits - debits).
//   - User: an account resolved by the identity layer.
//
// # Money
//
// Every amount is an int64 in minor units (cents). Conversion from and to
// human-entered decimals happens at the API boundary only (see package money).
//
// # Relationships
//
// Models reference each other by ID string rather than by pointer. Attribute
// bags are typed and versioned (GroupAttributes, ItemAttributes) so the store
// can persist them as JSON without the rest of the code handling free-form maps.
package models
