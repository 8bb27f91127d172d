// Package calculator is the money and distribution library: item totals,
// per-participant subtotals and charge allocation. Everything here is pure.
package calculator

import (
	"github.com/mmynk/splitlive/internal/models"
)

// ItemLineTotal is unit price x quantity.
func ItemLineTotal(item models.Item) float64 {
	return item.LineTotal()
}

// ItemsTotal sums the line totals of all items.
func ItemsTotal(items []models.Item) float64 {
	var total float64
	for _, it := range items {
		total += it.LineTotal()
	}
	return total
}

// ParticipantSubtotal adds unit price x share for every scope, item-level or
// unit-level, where the participant holds a share. Scopes of unknown items
// are ignored.
func ParticipantSubtotal(participantID string, items []models.Item, assignments models.Assignments) float64 {
	prices := make(map[string]float64, len(items))
	for _, it := range items {
		prices[it.ID] = it.UnitPrice
	}

	var subtotal float64
	for scope, shares := range assignments {
		price, ok := prices[scope.ItemID]
		if !ok {
			continue
		}
		for _, sh := range shares {
			if sh.ParticipantID == participantID {
				subtotal += price * sh.Quantity
			}
		}
	}
	return subtotal
}

// ChargeAmount computes a charge's grand total.
//
//	base = percent ? baseSubtotal x value/100 : value
//	fixed_per_person multiplies the base by numParticipants
//	discounts are negated
func ChargeAmount(charge models.Charge, baseSubtotal float64, numParticipants int) float64 {
	amount := charge.Value
	if charge.ValueType == models.ValuePercent {
		amount = baseSubtotal * charge.Value / 100
	}
	if charge.Distribution == models.DistFixedPerPerson {
		amount *= float64(numParticipants)
	}
	if charge.IsDiscount {
		amount = -amount
	}
	return amount
}

// ParticipantCharge is one participant's part of a charge's grand total.
// Per-person distributions split equally; proportional uses myRatio.
func ParticipantCharge(charge models.Charge, myRatio float64, numParticipants int, grandChargeAmount float64) float64 {
	if numParticipants <= 0 {
		return 0
	}
	switch charge.Distribution {
	case models.DistPerPerson, models.DistFixedPerPerson:
		return grandChargeAmount / float64(numParticipants)
	default:
		return grandChargeAmount * myRatio
	}
}

// Ratio is mySubtotal / totalSubtotal, falling back to an equal part when
// nobody has claimed anything yet.
func Ratio(mySubtotal, totalSubtotal float64, numParticipants int) float64 {
	if totalSubtotal == 0 {
		if numParticipants <= 0 {
			return 0
		}
		return 1 / float64(numParticipants)
	}
	return mySubtotal / totalSubtotal
}

// Breakdown is the result of Compute.
type Breakdown struct {
	// Totals has one entry per participant, in participant order.
	Totals []models.ParticipantTotal

	// ItemsTotal is the sum of item line totals (the bill subtotal).
	ItemsTotal float64

	// AssignedTotal is the sum of participant subtotals.
	AssignedTotal float64

	// ChargeTotals maps charge ID to its grand total.
	ChargeTotals map[string]float64

	// ChargesTotal is the sum of charge grand totals.
	ChargesTotal float64
}

// GrandTotal is what the participants owe together.
func (b Breakdown) GrandTotal() float64 {
	return b.AssignedTotal + b.ChargesTotal
}

// Compute produces every participant's subtotal, charge breakdown and total.
//
// Percent charges apply to the bill item subtotal. When every unit is
// claimed, the sum of participant totals equals the items total plus the
// charge grand totals; charges are always fully distributed.
func Compute(participants []models.Participant, items []models.Item, assignments models.Assignments, charges []models.Charge) Breakdown {
	n := len(participants)
	b := Breakdown{
		Totals:       make([]models.ParticipantTotal, n),
		ItemsTotal:   ItemsTotal(items),
		ChargeTotals: make(map[string]float64, len(charges)),
	}

	// Subtotals first: proportional charges need the assigned total.
	for i, p := range participants {
		sub := ParticipantSubtotal(p.ID, items, assignments)
		b.Totals[i] = models.ParticipantTotal{
			ParticipantID: p.ID,
			Name:          p.Name,
			Subtotal:      sub,
			Total:         sub,
		}
		b.AssignedTotal += sub
	}

	for _, c := range charges {
		grand := ChargeAmount(c, b.ItemsTotal, n)
		b.ChargeTotals[c.ID] = grand
		b.ChargesTotal += grand

		for i := range b.Totals {
			t := &b.Totals[i]
			ratio := Ratio(t.Subtotal, b.AssignedTotal, n)
			amount := ParticipantCharge(c, ratio, n, grand)
			t.Charges = append(t.Charges, models.ChargeShare{
				ChargeID: c.ID,
				Name:     c.Name,
				Amount:   amount,
			})
			t.Total += amount
		}
	}

	return b
}

// ComputeSession is Compute over a session's live state.
func ComputeSession(s *models.Session) Breakdown {
	return Compute(s.Participants, s.Items, s.Assignments, s.Charges)
}
