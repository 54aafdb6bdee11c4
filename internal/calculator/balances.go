package calculator

import (
	"sort"

	"github.com/mmynk/groupledger/internal/models"
)

// DebtEdge is a suggested payment from one member to another.
type DebtEdge struct {
	From   string // member who owes
	To     string // member who is owed
	Amount int64  // minor units
}

// ComputeBalances derives each member's net balance from aggregated credit and
// debit totals.
//
// The result has exactly one entry per member, in the order given, so members
// without any ledger activity still appear with a zero balance. Totals for
// users who are not in members are ignored.
func ComputeBalances(members []string, credits, debits map[string]int64) []models.Balance {
	balances := make([]models.Balance, 0, len(members))
	for _, userID := range members {
		credit := credits[userID]
		debit := debits[userID]
		balances = append(balances, models.Balance{
			UserID:  userID,
			Credit:  credit,
			Debit:   debit,
			Balance: credit - debit,
		})
	}
	return balances
}

// SimplifyDebts turns net balances into a short list of payments that settles
// the group.
//
// Greedy: the largest debtor pays the largest creditor until one of them is
// settled. Ties are broken by user id so the output is deterministic. If the
// balances do not sum to zero the surplus is left unmatched.
func SimplifyDebts(balances []models.Balance) []DebtEdge {
	type position struct {
		userID string
		amount int64
	}

	var creditors, debtors []position
	for _, b := range balances {
		switch {
		case b.Balance > 0:
			creditors = append(creditors, position{b.UserID, b.Balance})
		case b.Balance < 0:
			debtors = append(debtors, position{b.UserID, -b.Balance})
		}
	}

	byAmount := func(p []position) func(i, j int) bool {
		return func(i, j int) bool {
			if p[i].amount != p[j].amount {
				return p[i].amount > p[j].amount
			}
			return p[i].userID < p[j].userID
		}
	}
	sort.SliceStable(creditors, byAmount(creditors))
	sort.SliceStable(debtors, byAmount(debtors))

	var edges []DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := min(debtors[i].amount, creditors[j].amount)
		edges = append(edges, DebtEdge{
			From:   debtors[i].userID,
			To:     creditors[j].userID,
			Amount: amount,
		})

		debtors[i].amount -= amount
		creditors[j].amount -= amount

		if debtors[i].amount == 0 {
			i++
		}
		if creditors[j].amount == 0 {
			j++
		}
	}

	return edges
}
