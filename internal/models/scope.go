package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ScopeKind discriminates the Scope union.
type ScopeKind uint8

const (
	// ScopeItem covers the whole item; capacity is the item quantity.
	ScopeItem ScopeKind = iota
	// ScopeUnit covers exactly one unit of the item; capacity is 1.
	ScopeUnit
)

// unitSep joins an item ID and a unit index in the wire key.
const unitSep = "_unit_"

// Scope is an assignable unit of an item: the whole item, or unit n of it.
// Build values with ItemScope and UnitScope.
type Scope struct {
	Kind   ScopeKind
	ItemID string
	// Unit is the 0-based unit index; only meaningful for ScopeUnit.
	Unit int
}

// ItemScope returns the item-level scope of itemID.
func ItemScope(itemID string) Scope {
	return Scope{Kind: ScopeItem, ItemID: itemID}
}

// UnitScope returns the scope of unit n (0-based) of itemID.
func UnitScope(itemID string, n int) Scope {
	return Scope{Kind: ScopeUnit, ItemID: itemID, Unit: n}
}

// IsUnit reports whether s is a unit-level scope.
func (s Scope) IsUnit() bool {
	return s.Kind == ScopeUnit
}

// Key returns the wire form: "itemId" or "itemId_unit_n".
func (s Scope) Key() string {
	if s.Kind == ScopeUnit {
		return s.ItemID + unitSep + strconv.Itoa(s.Unit)
	}
	return s.ItemID
}

func (s Scope) String() string {
	return s.Key()
}

// ParseScope parses the wire form of a scope. A trailing "_unit_<n>" with a
// non-negative integer n selects a unit scope; anything else is an item scope.
func ParseScope(key string) (Scope, error) {
	if key == "" {
		return Scope{}, fmt.Errorf("empty scope key")
	}
	i := strings.LastIndex(key, unitSep)
	if i <= 0 {
		return ItemScope(key), nil
	}
	n, err := strconv.Atoi(key[i+len(unitSep):])
	if err != nil || n < 0 {
		return ItemScope(key), nil
	}
	return UnitScope(key[:i], n), nil
}

// HasUnitSuffix reports whether an item ID would be ambiguous on the wire.
func HasUnitSuffix(itemID string) bool {
	s, err := ParseScope(itemID)
	return err == nil && s.IsUnit()
}

// Share is one participant's claim within a scope.
type Share struct {
	ParticipantID string
	// Quantity is an integer in individual mode, Q/N or 1/N in grupal modes.
	Quantity float64
}

// Assignments maps each non-empty scope to its claimants, in claim order.
type Assignments map[Scope][]Share

// Clone returns a deep copy.
func (a Assignments) Clone() Assignments {
	if a == nil {
		return nil
	}
	c := make(Assignments, len(a))
	for k, v := range a {
		c[k] = append([]Share(nil), v...)
	}
	return c
}

// Sum returns the total claimed quantity in scope.
func (a Assignments) Sum(scope Scope) float64 {
	var total float64
	for _, sh := range a[scope] {
		total += sh.Quantity
	}
	return total
}

// ItemScopes returns every scope of itemID that has claims, item scope first
// and units in ascending order.
func (a Assignments) ItemScopes(itemID string) []Scope {
	var scopes []Scope
	for s := range a {
		if s.ItemID == itemID {
			scopes = append(scopes, s)
		}
	}
	sort.Slice(scopes, func(i, j int) bool {
		if scopes[i].Kind != scopes[j].Kind {
			return scopes[i].Kind < scopes[j].Kind
		}
		return scopes[i].Unit < scopes[j].Unit
	})
	return scopes
}

// HasUnitClaims reports whether any unit scope of itemID is non-empty.
// This is the derived "por unidad" signal for items without an explicit flag.
func (a Assignments) HasUnitClaims(itemID string) bool {
	for s, shares := range a {
		if s.ItemID == itemID && s.IsUnit() && len(shares) > 0 {
			return true
		}
	}
	return false
}

// Snapshot is the saved state of one split mode of one item.
type Snapshot struct {
	Item  []Share
	Units map[int][]Share
}

// SavedModes holds, per item ID, the snapshots of split modes that item left.
type SavedModes map[string]map[SplitMode]Snapshot

// Clone returns a deep copy.
func (m SavedModes) Clone() SavedModes {
	if m == nil {
		return nil
	}
	c := make(SavedModes, len(m))
	for itemID, modes := range m {
		cm := make(map[SplitMode]Snapshot, len(modes))
		for mode, snap := range modes {
			cm[mode] = snap.clone()
		}
		c[itemID] = cm
	}
	return c
}

func (s Snapshot) clone() Snapshot {
	c := Snapshot{Item: append([]Share(nil), s.Item...)}
	if s.Units != nil {
		c.Units = make(map[int][]Share, len(s.Units))
		for n, shares := range s.Units {
			c.Units[n] = append([]Share(nil), shares...)
		}
	}
	return c
}
