package models

// ItemMode is how an item is claimed.
type ItemMode string

const (
	// ModeIndividual lets each participant claim whole units.
	ModeIndividual ItemMode = "individual"
	// ModeGrupal splits the item equally, either as a whole or unit by unit.
	ModeGrupal ItemMode = "grupal"
)

// SplitMode is the effective claiming mode of an item, combining ItemMode
// with the grupal sub-mode.
type SplitMode string

const (
	SplitIndividual SplitMode = "individual"
	// SplitAll is grupal "entre todos": one item-level set, equal shares.
	SplitAll SplitMode = "all"
	// SplitUnit is grupal "por unidad": one independent set per unit.
	SplitUnit SplitMode = "unit"
)

// Valid reports whether m is a known split mode.
func (m SplitMode) Valid() bool {
	switch m {
	case SplitIndividual, SplitAll, SplitUnit:
		return true
	}
	return false
}

// Item represents a single billed line.
type Item struct {
	// ID identifies the item. Receipt lines without an ID use their name.
	ID string

	// Name is the product name as printed on the receipt (e.g., "Pizza").
	Name string

	// UnitPrice is the price of one unit.
	UnitPrice float64

	// Quantity is the number of units, always >= 1.
	Quantity int

	// Mode is individual or grupal.
	Mode ItemMode

	// PerUnit selects the "por unidad" sub-mode of a grupal item.
	PerUnit bool
}

// LineTotal is unit price times quantity.
func (it Item) LineTotal() float64 {
	return it.UnitPrice * float64(it.Quantity)
}

// SplitMode returns the effective claiming mode.
func (it Item) SplitMode() SplitMode {
	if it.Mode != ModeGrupal {
		return SplitIndividual
	}
	if it.PerUnit {
		return SplitUnit
	}
	return SplitAll
}

// SetSplitMode sets Mode and PerUnit from an effective split mode.
func (it *Item) SetSplitMode(m SplitMode) {
	switch m {
	case SplitAll:
		it.Mode, it.PerUnit = ModeGrupal, false
	case SplitUnit:
		it.Mode, it.PerUnit = ModeGrupal, true
	default:
		it.Mode, it.PerUnit = ModeIndividual, false
	}
}
