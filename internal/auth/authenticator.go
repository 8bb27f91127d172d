package auth

import (
	"github.com/mmynk/splitlive/internal/common"
	"github.com/mmynk/splitlive/internal/models"
)

// Actor is whoever issued a request: a participant ID, plus the claims of an
// owner token when one was presented and valid.
type Actor struct {
	ParticipantID string
	Owner         *Claims
}

// IsOwner reports whether the actor holds the owner token of s.
func (a Actor) IsOwner(s *models.Session) bool {
	if a.Owner == nil || a.Owner.SessionID != s.ID {
		return false
	}
	owner := s.Owner()
	return owner != nil && owner.ID == a.Owner.ParticipantID
}

// ID is the participant the actor speaks for: the token's owner when the
// request carries no participant ID.
func (a Actor) ID() string {
	if a.ParticipantID == "" && a.Owner != nil {
		return a.Owner.ParticipantID
	}
	return a.ParticipantID
}

// RequireOwner rejects anyone but the holder of the owner token.
func RequireOwner(a Actor, s *models.Session) error {
	if !a.IsOwner(s) {
		return common.Forbiddenf("only the host can do this")
	}
	return nil
}

// RequireMember rejects actors that are not participants of s.
func RequireMember(a Actor, s *models.Session) error {
	if a.IsOwner(s) {
		return nil
	}
	if a.ParticipantID == "" || s.Participant(a.ParticipantID) == nil {
		return common.Forbiddenf("not a participant of this session")
	}
	return nil
}

// RequireSelfOrOwner lets a participant act on themselves, and the host on anyone.
func RequireSelfOrOwner(a Actor, s *models.Session, participantID string) error {
	if a.IsOwner(s) {
		return nil
	}
	if err := RequireMember(a, s); err != nil {
		return err
	}
	if a.ParticipantID != participantID {
		return common.Forbiddenf("participants can only act on themselves")
	}
	return nil
}
