package session

import (
	"context"

	"github.com/mmynk/splitlive/internal/assign"
	"github.com/mmynk/splitlive/internal/auth"
	"github.com/mmynk/splitlive/internal/models"
)

// AssignParams is one claim toggle.
type AssignParams struct {
	Scope         models.Scope
	ParticipantID string
	Quantity      float64
	Assigned      bool
}

// Assign upserts or removes one participant's share in one scope.
// Participants claim for themselves; the host may claim for anyone.
func (m *Manager) Assign(ctx context.Context, sessionID string, actor auth.Actor, p AssignParams) (*models.Session, error) {
	return m.update(ctx, sessionID, func(s *models.Session) error {
		if err := requireAssigning(s); err != nil {
			return err
		}
		if err := auth.RequireSelfOrOwner(actor, s, p.ParticipantID); err != nil {
			return err
		}
		if err := assign.Assign(s, p.Scope, p.ParticipantID, p.Quantity, p.Assigned); err != nil {
			return err
		}
		return assign.CheckCapacity(s, p.Scope.ItemID)
	})
}

// AssignAll assigns every participant to a grupal scope, or clears it.
// Open to every participant.
func (m *Manager) AssignAll(ctx context.Context, sessionID string, actor auth.Actor, scope models.Scope, assigned bool) (*models.Session, error) {
	return m.update(ctx, sessionID, func(s *models.Session) error {
		if err := requireAssigning(s); err != nil {
			return err
		}
		if err := auth.RequireMember(actor, s); err != nil {
			return err
		}
		return assign.AssignAll(s, scope, assigned)
	})
}

// SetItemMode switches an item's split mode, saving and restoring claims.
// Open to every participant. The save, clear and restore steps commit
// together, so no poll ever sees a half-switched item.
func (m *Manager) SetItemMode(ctx context.Context, sessionID string, actor auth.Actor, itemID string, mode models.SplitMode) (*models.Session, error) {
	s, err := m.update(ctx, sessionID, func(s *models.Session) error {
		if err := requireAssigning(s); err != nil {
			return err
		}
		if err := auth.RequireMember(actor, s); err != nil {
			return err
		}
		if err := assign.SwitchMode(s, itemID, mode); err != nil {
			return err
		}
		return assign.CheckCapacity(s, itemID)
	})
	if err != nil {
		return nil, err
	}
	m.logger.Debug("item mode changed", "session_id", sessionID, "item_id", itemID, "mode", mode)
	return s, nil
}
