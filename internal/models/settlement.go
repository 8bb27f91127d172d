package models

// Transfer is a payment one participant owes another to settle the bill.
// The host pays the restaurant, so every other participant settles with the host.
type Transfer struct {
	// FromParticipantID is the participant who pays.
	FromParticipantID string

	// ToParticipantID is the participant who receives the payment.
	ToParticipantID string

	// Amount is always positive.
	Amount float64
}
