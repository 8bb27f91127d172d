package models

// ValueType says how a charge value is interpreted.
type ValueType string

const (
	ValuePercent ValueType = "percent"
	ValueFixed   ValueType = "fixed"
)

// Distribution says how a charge is spread across participants.
type Distribution string

const (
	// DistProportional spreads the charge by each participant's share of the subtotal.
	DistProportional Distribution = "proportional"
	// DistPerPerson splits the charge equally between all participants.
	DistPerPerson Distribution = "per_person"
	// DistFixedPerPerson reads the value as "per head": the grand total is
	// value x participants and everyone owes exactly value.
	DistFixedPerPerson Distribution = "fixed_per_person"
)

// Charge is a tax, fee, discount or gratuity applied on top of the item subtotal.
type Charge struct {
	// ID is the unique identifier for the charge (UUID format).
	ID string

	// Name is the label shown to participants (e.g., "Tip", "IVA").
	Name string

	// Value is never negative; the sign is carried by IsDiscount.
	Value float64

	ValueType    ValueType
	IsDiscount   bool
	Distribution Distribution
}

// ChargeShare is one participant's part of one charge.
type ChargeShare struct {
	ChargeID string
	Name     string
	Amount   float64
}

// ParticipantTotal is one participant's computed result.
// Frozen into Session.Totals at finalize time.
type ParticipantTotal struct {
	ParticipantID string
	Name          string

	// Subtotal is the sum of unit price x share over every claimed scope.
	Subtotal float64

	// Charges is the per-charge breakdown, in charge order.
	Charges []ChargeShare

	// Total is Subtotal plus every charge share.
	Total float64
}
