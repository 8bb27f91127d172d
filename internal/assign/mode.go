package assign

import (
	"math"

	"github.com/mmynk/splitlive/internal/common"
	"github.com/mmynk/splitlive/internal/models"
)

// SwitchMode moves an item to another split mode without losing work.
//
//  1. the claims of the mode being left are saved as that mode's snapshot
//  2. every scope of the item is cleared
//  3. the target's snapshot is restored and consumed, or the default applies:
//     nobody for individual, everyone equally for "all", empty units for "unit"
//
// Switching to the current mode is a no-op. Switching A→B→A with no edits in
// between restores the exact state from before the first switch.
func SwitchMode(s *models.Session, itemID string, target models.SplitMode) error {
	item := s.Item(itemID)
	if item == nil {
		return common.NotFoundf("item %s", itemID)
	}
	if !target.Valid() {
		return common.Invalidf("unknown split mode %q", target)
	}
	from := item.SplitMode()
	if from == target {
		return nil
	}
	if s.Assignments == nil {
		s.Assignments = make(models.Assignments)
	}
	if s.SavedModes == nil {
		s.SavedModes = make(models.SavedModes)
	}

	saved := s.SavedModes[itemID]
	if saved == nil {
		saved = make(map[models.SplitMode]models.Snapshot)
		s.SavedModes[itemID] = saved
	}
	snap, hasSnap := saved[target]
	saved[from] = Capture(s.Assignments, itemID)
	delete(saved, target)

	for _, scope := range s.Assignments.ItemScopes(itemID) {
		delete(s.Assignments, scope)
	}
	item.SetSplitMode(target)

	if hasSnap {
		restore(s, *item, snap)
		return nil
	}
	if target == models.SplitAll && len(s.Participants) > 0 {
		s.Assignments[models.ItemScope(itemID)] = equalShares(s.ParticipantIDs(), float64(item.Quantity))
	}
	return nil
}

// Capture copies the current claims of one item into a snapshot.
func Capture(a models.Assignments, itemID string) models.Snapshot {
	var snap models.Snapshot
	for _, scope := range a.ItemScopes(itemID) {
		shares := append([]models.Share(nil), a[scope]...)
		if scope.IsUnit() {
			if snap.Units == nil {
				snap.Units = make(map[int][]models.Share)
			}
			snap.Units[scope.Unit] = shares
			continue
		}
		snap.Item = shares
	}
	return snap
}

// restore writes a snapshot back for the item's current mode, dropping
// participants that left and units past the current quantity. Equal splits
// are recomputed only when the snapshot no longer adds up.
func restore(s *models.Session, item models.Item, snap models.Snapshot) {
	known := make(map[string]bool, len(s.Participants))
	for _, id := range s.ParticipantIDs() {
		known[id] = true
	}
	live := func(shares []models.Share) []models.Share {
		out := shares[:0:0]
		for _, sh := range shares {
			if known[sh.ParticipantID] {
				out = append(out, sh)
			}
		}
		return out
	}

	switch item.SplitMode() {
	case models.SplitIndividual:
		var used float64
		var shares []models.Share
		for _, sh := range live(snap.Item) {
			if used+sh.Quantity > float64(item.Quantity)+epsilon {
				continue
			}
			used += sh.Quantity
			shares = append(shares, sh)
		}
		if len(shares) > 0 {
			s.Assignments[models.ItemScope(item.ID)] = shares
		}

	case models.SplitAll:
		if shares := rebalance(live(snap.Item), float64(item.Quantity)); len(shares) > 0 {
			s.Assignments[models.ItemScope(item.ID)] = shares
		}

	case models.SplitUnit:
		for n, unitShares := range snap.Units {
			if n < 0 || n >= item.Quantity {
				continue
			}
			if shares := rebalance(live(unitShares), 1); len(shares) > 0 {
				s.Assignments[models.UnitScope(item.ID, n)] = shares
			}
		}
	}
}

// rebalance keeps an equal split as-is when it still covers capacity and
// re-splits it otherwise.
func rebalance(shares []models.Share, capacity float64) []models.Share {
	if len(shares) == 0 {
		return nil
	}
	var sum float64
	for _, sh := range shares {
		sum += sh.Quantity
	}
	if math.Abs(sum-capacity) <= epsilon {
		return shares
	}
	ids := make([]string, len(shares))
	for i, sh := range shares {
		ids[i] = sh.ParticipantID
	}
	return equalShares(ids, capacity)
}
