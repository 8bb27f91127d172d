package models

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	// StatusAssigning is the editable state: items, claims and charges can change.
	StatusAssigning SessionStatus = "assigning"
	// StatusFinalized freezes a Totals snapshot; bill data is read-only until reopened.
	StatusFinalized SessionStatus = "finalized"
)

// CurrencyFormat controls how amounts are rounded and rendered for a session.
type CurrencyFormat struct {
	// DecimalPlaces is the number of minor digits (0 for CLP, 2 for USD).
	DecimalPlaces int

	// NumberFormat is a sample pattern describing the separators:
	// "1,234.56", "1.234,56" or "1 234,56".
	NumberFormat string

	// Symbol is prefixed to formatted amounts (e.g. "$").
	Symbol string
}

// DefaultCurrency is used when a session is created without a currency format.
var DefaultCurrency = CurrencyFormat{
	DecimalPlaces: 2,
	NumberFormat:  "1,234.56",
	Symbol:        "$",
}

// Session represents one shared bill.
// It is the aggregate root: every nested entity lives and dies with it.
type Session struct {
	// ID is the unique identifier for the session (UUID format).
	ID string

	// Title is the human-readable name for the bill.
	Title string

	// Status is the lifecycle state (assigning or finalized).
	Status SessionStatus

	// Currency holds rounding and formatting preferences.
	Currency CurrencyFormat

	// Subtotal is the item subtotal reported by receipt ingestion.
	// It is only used for a soft reconciliation check at finalize time.
	Subtotal float64

	// AllowEditorItems lets editors add, edit and delete items.
	AllowEditorItems bool

	// PasscodeHash is the bcrypt hash of the optional join passcode.
	PasscodeHash string

	// CreatedAt is the Unix timestamp (seconds) when the session was created.
	CreatedAt int64

	// ExpiresAt is the Unix timestamp (seconds) after which the session is gone.
	ExpiresAt int64

	// LastUpdated is a Unix timestamp in milliseconds, strictly increasing on
	// every mutation. Clients poll with the last value they have seen.
	LastUpdated int64

	Participants []Participant
	Items        []Item
	Assignments  Assignments
	Charges      []Charge

	// Totals is the frozen snapshot produced by finalize. Nil while assigning.
	Totals []ParticipantTotal

	// SavedModes keeps, per item, the assignments of split modes the item
	// has left, so switching back restores them.
	SavedModes SavedModes
}

// Expired reports whether the session is past its TTL at the given Unix time.
func (s *Session) Expired(now int64) bool {
	return s.ExpiresAt > 0 && now >= s.ExpiresAt
}

// Owner returns the owner participant, or nil if none exists.
func (s *Session) Owner() *Participant {
	for i := range s.Participants {
		if s.Participants[i].Role == RoleOwner {
			return &s.Participants[i]
		}
	}
	return nil
}

// Participant returns the participant with the given ID, or nil.
func (s *Session) Participant(id string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].ID == id {
			return &s.Participants[i]
		}
	}
	return nil
}

// Item returns the item with the given ID, or nil.
func (s *Session) Item(id string) *Item {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return &s.Items[i]
		}
	}
	return nil
}

// ParticipantIDs returns participant IDs in session order.
func (s *Session) ParticipantIDs() []string {
	ids := make([]string, len(s.Participants))
	for i, p := range s.Participants {
		ids[i] = p.ID
	}
	return ids
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Participants = append([]Participant(nil), s.Participants...)
	c.Items = append([]Item(nil), s.Items...)
	c.Charges = append([]Charge(nil), s.Charges...)
	c.Assignments = s.Assignments.Clone()
	c.SavedModes = s.SavedModes.Clone()
	if s.Totals != nil {
		c.Totals = make([]ParticipantTotal, len(s.Totals))
		for i, t := range s.Totals {
			t.Charges = append([]ChargeShare(nil), t.Charges...)
			c.Totals[i] = t
		}
	}
	return &c
}
