package session

import (
	"context"

	"github.com/mmynk/splitlive/internal/auth"
	"github.com/mmynk/splitlive/internal/calculator"
	"github.com/mmynk/splitlive/internal/common"
	"github.com/mmynk/splitlive/internal/metrics"
	"github.com/mmynk/splitlive/internal/models"
)

// Lifecycle:
//
//	assigning --Finalize--> finalized --Reopen--> assigning
//
// Expiry is terminal and sits outside the machine: past ExpiresAt every
// read and write fails with NotFoundOrExpired.

// FinalizeResult carries the finalized session and the soft subtotal check.
type FinalizeResult struct {
	Session *models.Session

	// Reconciled is false when the item lines do not add up to the receipt
	// subtotal. Finalize proceeds regardless.
	Reconciled bool
}

// Finalize freezes the totals snapshot. Host only.
func (m *Manager) Finalize(ctx context.Context, sessionID string, actor auth.Actor) (*FinalizeResult, error) {
	var reconciled bool
	s, err := m.update(ctx, sessionID, func(s *models.Session) error {
		if err := auth.RequireOwner(actor, s); err != nil {
			return err
		}
		if s.Status != models.StatusAssigning {
			return common.Statef("session is already %s", s.Status)
		}

		b := calculator.ComputeSession(s)
		s.Totals = calculator.Freeze(b, s.Currency)
		s.Status = models.StatusFinalized
		reconciled = Reconciled(s, b.ItemsTotal)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !reconciled {
		m.logger.Warn("item lines do not match receipt subtotal",
			"session_id", sessionID,
			"subtotal", s.Subtotal,
		)
	}
	metrics.SessionsFinalized.Inc()
	m.logger.Info("session finalized", "session_id", sessionID, "participants", len(s.Totals))

	if m.onFinalize != nil {
		m.onFinalize(context.WithoutCancel(ctx), s.Clone())
	}
	return &FinalizeResult{Session: s, Reconciled: reconciled}, nil
}

// Reconciled compares the item total with the receipt subtotal at the
// session's precision. Sessions without a receipt subtotal always reconcile.
func Reconciled(s *models.Session, itemsTotal float64) bool {
	if s.Subtotal == 0 {
		return true
	}
	places := s.Currency.DecimalPlaces
	return calculator.Round(itemsTotal, places) == calculator.Round(s.Subtotal, places)
}

// Reopen discards the totals snapshot and returns to assigning. All bill
// data is kept, so live totals reproduce the frozen ones. Host only.
func (m *Manager) Reopen(ctx context.Context, sessionID string, actor auth.Actor) (*models.Session, error) {
	s, err := m.update(ctx, sessionID, func(s *models.Session) error {
		if err := auth.RequireOwner(actor, s); err != nil {
			return err
		}
		if s.Status != models.StatusFinalized {
			return common.Statef("session is %s, not finalized", s.Status)
		}
		s.Totals = nil
		s.Status = models.StatusAssigning
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("session reopened", "session_id", sessionID)
	return s, nil
}
