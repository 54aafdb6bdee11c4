package calculator

import (
	"errors"
	"fmt"

	"github.com/mmynk/groupledger/internal/models"
)

// ErrInvalidSplit is returned when a split cannot be computed from its inputs.
var ErrInvalidSplit = errors.New("invalid split")

// Split is the per-user division of one item's amount.
// Credits belong to the payers, Debits to the payees. Both sum to the item amount.
type Split struct {
	Credits []models.LedgerEntry
	Debits  []models.LedgerEntry
}

// ComputeSplit divides amount (minor units) among payers and among payees.
//
// Each list is split independently: with n participants every position gets
// amount/n, and the first amount%n positions in input order get one extra
// minor unit. The result preserves input order. Duplicate ids are independent
// participants; callers that want one share per user must de-duplicate first.
func ComputeSplit(amount int64, payerIDs, payeeIDs []string) (Split, error) {
	if amount < 0 {
		return Split{}, fmt.Errorf("%w: negative amount %d", ErrInvalidSplit, amount)
	}
	if len(payerIDs) == 0 {
		return Split{}, fmt.Errorf("%w: at least one payer is required", ErrInvalidSplit)
	}
	if len(payeeIDs) == 0 {
		return Split{}, fmt.Errorf("%w: at least one payee is required", ErrInvalidSplit)
	}

	return Split{
		Credits: divide(amount, payerIDs),
		Debits:  divide(amount, payeeIDs),
	}, nil
}

// divide assigns base+1 to the first remainder positions and base to the rest.
func divide(amount int64, userIDs []string) []models.LedgerEntry {
	n := int64(len(userIDs))
	base := amount / n
	remainder := amount % n

	entries := make([]models.LedgerEntry, len(userIDs))
	for i, id := range userIDs {
		share := base
		if int64(i) < remainder {
			share++
		}
		entries[i] = models.LedgerEntry{UserID: id, Amount: share}
	}
	return entries
}

// Collapse merges entries that share a user id, summing their amounts.
// The first occurrence fixes the position of a user. Sums are unchanged.
func (s Split) Collapse() Split {
	return Split{
		Credits: collapse(s.Credits),
		Debits:  collapse(s.Debits),
	}
}

func collapse(entries []models.LedgerEntry) []models.LedgerEntry {
	index := make(map[string]int, len(entries))
	out := make([]models.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if i, ok := index[e.UserID]; ok {
			out[i].Amount += e.Amount
			continue
		}
		index[e.UserID] = len(out)
		out = append(out, e)
	}
	return out
}

// Sum returns the total of the entries' amounts.
func Sum(entries []models.LedgerEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Amount
	}
	return total
}
