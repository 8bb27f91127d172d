package calculator

import (
	"sort"

	"github.com/mmynk/splitlive/internal/models"
)

// settleEpsilon ignores floating point noise when matching balances.
const settleEpsilon = 0.005

// Transfers computes who pays whom once payerID has paid the whole bill.
//
// Algorithm:
//   - payer contributed the sum of all totals; everyone owes their own total
//   - net = paid - owed; positive means owed money, negative means owes money
//   - greedy matching of debtors against creditors, largest first
//
// A participant whose discounts exceed their consumption ends up with a
// negative total and is therefore a creditor too.
func Transfers(totals []models.ParticipantTotal, payerID string) []models.Transfer {
	if payerID == "" || len(totals) == 0 {
		return nil
	}

	net := make(map[string]float64, len(totals))
	var grand float64
	for _, t := range totals {
		net[t.ParticipantID] -= t.Total
		grand += t.Total
	}
	net[payerID] += grand

	type balance struct {
		id     string
		amount float64
	}
	var creditors, debtors []balance
	for _, t := range totals {
		id := t.ParticipantID
		switch v := net[id]; {
		case v > settleEpsilon:
			creditors = append(creditors, balance{id, v})
		case v < -settleEpsilon:
			debtors = append(debtors, balance{id, -v})
		}
	}
	sort.SliceStable(creditors, func(i, j int) bool { return creditors[i].amount > creditors[j].amount })
	sort.SliceStable(debtors, func(i, j int) bool { return debtors[i].amount > debtors[j].amount })

	var transfers []models.Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := debtors[i].amount
		if creditors[j].amount < amount {
			amount = creditors[j].amount
		}
		if amount > settleEpsilon {
			transfers = append(transfers, models.Transfer{
				FromParticipantID: debtors[i].id,
				ToParticipantID:   creditors[j].id,
				Amount:            amount,
			})
		}
		debtors[i].amount -= amount
		creditors[j].amount -= amount
		if debtors[i].amount < settleEpsilon {
			i++
		}
		if creditors[j].amount < settleEpsilon {
			j++
		}
	}
	return transfers
}
