package models

// Role is a participant's role within a session.
type Role string

const (
	// RoleOwner is the host who created the session.
	RoleOwner Role = "owner"
	// RoleEditor is anyone who joined through the shared link.
	RoleEditor Role = "editor"
)

// Participant represents a person attached to a session.
type Participant struct {
	// ID is stable for the life of the session (UUID format).
	ID string

	// Name is the display name; it can be edited at any time.
	Name string

	// Role is owner or editor. Exactly one participant is the owner.
	Role Role

	// Phone is optional and only used to deliver the final summary.
	Phone string
}
