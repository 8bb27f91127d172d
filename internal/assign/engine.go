// Package assign holds the claiming rules for the three item modes and the
// mode-switch contract. Functions mutate a *models.Session in place and never
// leave it half-changed: every check runs before the first write.
//
// The same rules run on the server inside a store transaction and on client
// replicas for optimistic edits.
package assign

import (
	"math"

	"github.com/mmynk/splitlive/internal/common"
	"github.com/mmynk/splitlive/internal/models"
)

const epsilon = 1e-9

// Capacity is the claimable quantity of a scope: 1 for a unit, the item
// quantity for the whole item.
func Capacity(item models.Item, scope models.Scope) float64 {
	if scope.IsUnit() {
		return 1
	}
	return float64(item.Quantity)
}

// Claimed is the quantity of itemID claimed across all of its scopes.
func Claimed(s *models.Session, itemID string) float64 {
	var total float64
	for _, scope := range s.Assignments.ItemScopes(itemID) {
		total += s.Assignments.Sum(scope)
	}
	return total
}

// Remaining is how much of itemID is still unclaimed.
func Remaining(s *models.Session, itemID string) float64 {
	item := s.Item(itemID)
	if item == nil {
		return 0
	}
	return math.Max(0, float64(item.Quantity)-Claimed(s, itemID))
}

// Members returns the participant IDs holding a share of scope, in claim order.
func Members(a models.Assignments, scope models.Scope) []string {
	shares := a[scope]
	ids := make([]string, len(shares))
	for i, sh := range shares {
		ids[i] = sh.ParticipantID
	}
	return ids
}

// CheckCapacity verifies that no scope of itemID, nor the item as a whole,
// is claimed beyond its capacity.
func CheckCapacity(s *models.Session, itemID string) error {
	item := s.Item(itemID)
	if item == nil {
		return common.NotFoundf("item %s", itemID)
	}
	var total float64
	for _, scope := range s.Assignments.ItemScopes(itemID) {
		sum := s.Assignments.Sum(scope)
		if sum > Capacity(*item, scope)+epsilon {
			return common.Capacityf("scope %s claims %g of %g", scope, sum, Capacity(*item, scope))
		}
		total += sum
	}
	if total > float64(item.Quantity)+epsilon {
		return common.Capacityf("item %s claims %g of %d", itemID, total, item.Quantity)
	}
	return nil
}

// Assign adds, updates or removes one participant's share within one scope.
//
// Individual items take an integer quantity at item scope; a zero quantity or
// assigned=false removes the claim. Grupal items toggle membership and every
// member's share is recomputed as capacity/members, so quantity is ignored.
// Calling it twice with the same arguments leaves the same state.
func Assign(s *models.Session, scope models.Scope, participantID string, quantity float64, assigned bool) error {
	item, err := lookup(s, scope, participantID)
	if err != nil {
		return err
	}

	switch item.SplitMode() {
	case models.SplitIndividual:
		if scope.IsUnit() {
			return common.Invalidf("item %s is claimed by quantity, not per unit", item.ID)
		}
		if quantity < 0 || quantity != math.Trunc(quantity) {
			return common.Invalidf("quantity must be a whole number, got %g", quantity)
		}
		if !assigned || quantity == 0 {
			removeMember(s.Assignments, scope, participantID)
			return nil
		}
		others := s.Assignments.Sum(scope) - shareOf(s.Assignments[scope], participantID)
		if others+quantity > float64(item.Quantity)+epsilon {
			return common.Capacityf("only %g of %s left", float64(item.Quantity)-others, item.Name)
		}
		upsert(s.Assignments, scope, participantID, quantity)

	case models.SplitAll:
		if scope.IsUnit() {
			return common.Invalidf("item %s is split between everyone, not per unit", item.ID)
		}
		toggle(s.Assignments, scope, participantID, assigned, Capacity(*item, scope))

	case models.SplitUnit:
		if !scope.IsUnit() {
			return common.Invalidf("item %s is split per unit; claim a unit", item.ID)
		}
		toggle(s.Assignments, scope, participantID, assigned, 1)
	}
	return nil
}

// AssignAll assigns every current participant to a grupal scope in equal
// shares, or clears the scope.
func AssignAll(s *models.Session, scope models.Scope, assigned bool) error {
	item, err := lookup(s, scope, "")
	if err != nil {
		return err
	}
	switch mode := item.SplitMode(); {
	case mode == models.SplitAll && !scope.IsUnit():
	case mode == models.SplitUnit && scope.IsUnit():
	default:
		return common.Invalidf("assign to all needs a grupal scope, item %s is %s", item.ID, mode)
	}

	if !assigned || len(s.Participants) == 0 {
		delete(s.Assignments, scope)
		return nil
	}
	s.Assignments[scope] = equalShares(s.ParticipantIDs(), Capacity(*item, scope))
	return nil
}

// RemoveParticipant deletes a participant and cascades: their claims vanish,
// grupal scopes re-split between the remaining members and saved snapshots
// forget them.
func RemoveParticipant(s *models.Session, participantID string) error {
	idx := -1
	for i, p := range s.Participants {
		if p.ID == participantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return common.NotFoundf("participant %s", participantID)
	}
	s.Participants = append(s.Participants[:idx], s.Participants[idx+1:]...)

	for scope := range s.Assignments {
		if !hasMember(s.Assignments[scope], participantID) {
			continue
		}
		removeMember(s.Assignments, scope, participantID)
		item := s.Item(scope.ItemID)
		if item != nil && item.Mode == models.ModeGrupal {
			if _, ok := s.Assignments[scope]; ok {
				s.Assignments[scope] = equalShares(Members(s.Assignments, scope), Capacity(*item, scope))
			}
		}
	}

	for itemID, modes := range s.SavedModes {
		for mode, snap := range modes {
			snap.Item = dropMember(snap.Item, participantID)
			for n, shares := range snap.Units {
				snap.Units[n] = dropMember(shares, participantID)
			}
			modes[mode] = snap
		}
		s.SavedModes[itemID] = modes
	}
	return nil
}

// RemoveItem deletes an item with all of its claims and saved snapshots.
func RemoveItem(s *models.Session, itemID string) error {
	idx := -1
	for i, it := range s.Items {
		if it.ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return common.NotFoundf("item %s", itemID)
	}
	s.Items = append(s.Items[:idx], s.Items[idx+1:]...)
	for scope := range s.Assignments {
		if scope.ItemID == itemID {
			delete(s.Assignments, scope)
		}
	}
	delete(s.SavedModes, itemID)
	return nil
}

// ResizeItem changes an item's quantity. Individual claims above the new
// quantity reject the change; grupal shares follow the new size and units
// past the end are dropped.
func ResizeItem(s *models.Session, itemID string, quantity int) error {
	item := s.Item(itemID)
	if item == nil {
		return common.NotFoundf("item %s", itemID)
	}
	if quantity < 1 {
		return common.Invalidf("quantity must be at least 1, got %d", quantity)
	}
	if item.SplitMode() == models.SplitIndividual && Claimed(s, itemID) > float64(quantity)+epsilon {
		return common.Capacityf("%g of %s already claimed", Claimed(s, itemID), item.Name)
	}

	item.Quantity = quantity
	for _, scope := range s.Assignments.ItemScopes(itemID) {
		switch {
		case scope.IsUnit() && scope.Unit >= quantity:
			delete(s.Assignments, scope)
		case !scope.IsUnit() && item.SplitMode() == models.SplitAll:
			s.Assignments[scope] = equalShares(Members(s.Assignments, scope), float64(quantity))
		}
	}
	for mode, snap := range s.SavedModes[itemID] {
		for n := range snap.Units {
			if n >= quantity {
				delete(snap.Units, n)
			}
		}
		s.SavedModes[itemID][mode] = snap
	}
	return nil
}

func lookup(s *models.Session, scope models.Scope, participantID string) (*models.Item, error) {
	item := s.Item(scope.ItemID)
	if item == nil {
		return nil, common.NotFoundf("item %s", scope.ItemID)
	}
	if participantID != "" && s.Participant(participantID) == nil {
		return nil, common.NotFoundf("participant %s", participantID)
	}
	if scope.IsUnit() && (scope.Unit < 0 || scope.Unit >= item.Quantity) {
		return nil, common.Invalidf("unit %d out of range for %s (quantity %d)", scope.Unit, item.ID, item.Quantity)
	}
	if s.Assignments == nil {
		s.Assignments = make(models.Assignments)
	}
	return item, nil
}

// toggle adds or removes a member of an equal-split scope and re-splits it.
func toggle(a models.Assignments, scope models.Scope, participantID string, assigned bool, capacity float64) {
	ids := Members(a, scope)
	present := hasMember(a[scope], participantID)
	switch {
	case assigned && !present:
		ids = append(ids, participantID)
	case !assigned && present:
		ids = dropID(ids, participantID)
	default:
		return
	}
	if len(ids) == 0 {
		delete(a, scope)
		return
	}
	a[scope] = equalShares(ids, capacity)
}

func equalShares(ids []string, capacity float64) []models.Share {
	if len(ids) == 0 {
		return nil
	}
	q := capacity / float64(len(ids))
	shares := make([]models.Share, len(ids))
	for i, id := range ids {
		shares[i] = models.Share{ParticipantID: id, Quantity: q}
	}
	return shares
}

func upsert(a models.Assignments, scope models.Scope, participantID string, quantity float64) {
	shares := a[scope]
	for i := range shares {
		if shares[i].ParticipantID == participantID {
			shares[i].Quantity = quantity
			return
		}
	}
	a[scope] = append(shares, models.Share{ParticipantID: participantID, Quantity: quantity})
}

func removeMember(a models.Assignments, scope models.Scope, participantID string) {
	shares := dropMember(a[scope], participantID)
	if len(shares) == 0 {
		delete(a, scope)
		return
	}
	a[scope] = shares
}

func dropMember(shares []models.Share, participantID string) []models.Share {
	out := shares[:0:0]
	for _, sh := range shares {
		if sh.ParticipantID != participantID {
			out = append(out, sh)
		}
	}
	return out
}

func dropID(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func hasMember(shares []models.Share, participantID string) bool {
	for _, sh := range shares {
		if sh.ParticipantID == participantID {
			return true
		}
	}
	return false
}

func shareOf(shares []models.Share, participantID string) float64 {
	for _, sh := range shares {
		if sh.ParticipantID == participantID {
			return sh.Quantity
		}
	}
	return 0
}
