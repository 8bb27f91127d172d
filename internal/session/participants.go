package session

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/mmynk/splitlive/internal/assign"
	"github.com/mmynk/splitlive/internal/auth"
	"github.com/mmynk/splitlive/internal/common"
	"github.com/mmynk/splitlive/internal/models"
)

// JoinParams identifies a new editor.
type JoinParams struct {
	Name     string
	Phone    string
	Passcode string
}

// Join adds an editor. Allowed while finalized too, so latecomers can still
// see the bill.
func (m *Manager) Join(ctx context.Context, sessionID string, p JoinParams) (*models.Session, models.Participant, error) {
	name := strings.TrimSpace(p.Name)
	v := common.NewValidator().
		Required("name", name).
		MaxLength("name", name, maxNameLength).
		Phone("phone", p.Phone)
	if err := v.Err(); err != nil {
		return nil, models.Participant{}, err
	}
	phone, _ := common.NormalizePhone(p.Phone)

	joined := models.Participant{
		ID:    uuid.New().String(),
		Name:  name,
		Role:  models.RoleEditor,
		Phone: phone,
	}
	s, err := m.update(ctx, sessionID, func(s *models.Session) error {
		if err := auth.CheckPasscode(s.PasscodeHash, p.Passcode); err != nil {
			return common.Forbiddenf("%v", err)
		}
		s.Participants = append(s.Participants, joined)
		return nil
	})
	if err != nil {
		return nil, models.Participant{}, err
	}
	m.logger.Info("participant joined", "session_id", sessionID, "participant_id", joined.ID)
	return s, joined, nil
}

// ParticipantPatch holds the identity fields UpdateParticipant changes.
type ParticipantPatch struct {
	Name  *string
	Phone *string
}

// UpdateParticipant edits a participant's name or phone. Participants edit
// themselves; the host edits anyone. Allowed while finalized.
func (m *Manager) UpdateParticipant(ctx context.Context, sessionID string, actor auth.Actor, participantID string, patch ParticipantPatch) (*models.Session, error) {
	v := common.NewValidator()
	if patch.Name != nil {
		v.Required("name", *patch.Name).MaxLength("name", *patch.Name, maxNameLength)
	}
	if patch.Phone != nil {
		v.Phone("phone", *patch.Phone)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	return m.update(ctx, sessionID, func(s *models.Session) error {
		p := s.Participant(participantID)
		if p == nil {
			return common.NotFoundf("participant %s", participantID)
		}
		if err := auth.RequireSelfOrOwner(actor, s, participantID); err != nil {
			return err
		}
		if patch.Name != nil {
			p.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Phone != nil {
			p.Phone, _ = common.NormalizePhone(*patch.Phone)
		}
		return nil
	})
}

// RemoveParticipant removes a participant and their claims. The host may
// remove anyone but themselves; editors may only leave.
func (m *Manager) RemoveParticipant(ctx context.Context, sessionID string, actor auth.Actor, participantID string) (*models.Session, error) {
	s, err := m.update(ctx, sessionID, func(s *models.Session) error {
		if err := requireAssigning(s); err != nil {
			return err
		}
		p := s.Participant(participantID)
		if p == nil {
			return common.NotFoundf("participant %s", participantID)
		}
		if p.Role == models.RoleOwner {
			return common.Forbiddenf("the host cannot be removed")
		}
		if err := auth.RequireSelfOrOwner(actor, s, participantID); err != nil {
			return err
		}
		return assign.RemoveParticipant(s, participantID)
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("participant removed", "session_id", sessionID, "participant_id", participantID)
	return s, nil
}
