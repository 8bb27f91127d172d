package session

import (
	"context"

	"github.com/mmynk/splitlive/internal/auth"
	"github.com/mmynk/splitlive/internal/common"
	"github.com/mmynk/splitlive/internal/export"
	"github.com/mmynk/splitlive/internal/models"
)

// UpdateCharges replaces the whole charge list. Last writer wins; there is
// no per-charge merge. Host only.
func (m *Manager) UpdateCharges(ctx context.Context, sessionID string, actor auth.Actor, charges []models.Charge) (*models.Session, error) {
	normalized, err := normalizeCharges(charges)
	if err != nil {
		return nil, err
	}
	return m.update(ctx, sessionID, func(s *models.Session) error {
		if err := requireAssigning(s); err != nil {
			return err
		}
		if err := auth.RequireOwner(actor, s); err != nil {
			return err
		}
		s.Charges = normalized
		return nil
	})
}

// SettingsPatch holds the session-level fields UpdateSettings changes.
// An empty Passcode removes the passcode.
type SettingsPatch struct {
	Title            *string
	Currency         *models.CurrencyFormat
	AllowEditorItems *bool
	Passcode         *string
}

// UpdateSettings edits title, currency format, item permissions and the
// join passcode. Host only; allowed in any status.
func (m *Manager) UpdateSettings(ctx context.Context, sessionID string, actor auth.Actor, patch SettingsPatch) (*models.Session, error) {
	v := common.NewValidator()
	if patch.Title != nil {
		v.MaxLength("title", *patch.Title, maxTitleLength)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	if patch.Currency != nil {
		if err := validateCurrency(*patch.Currency); err != nil {
			return nil, err
		}
	}
	var hash *string
	if patch.Passcode != nil {
		h := ""
		if *patch.Passcode != "" {
			var err error
			if h, err = auth.HashPasscode(*patch.Passcode); err != nil {
				return nil, common.Invalidf("%v", err)
			}
		}
		hash = &h
	}

	return m.update(ctx, sessionID, func(s *models.Session) error {
		if err := auth.RequireOwner(actor, s); err != nil {
			return err
		}
		if patch.Title != nil {
			s.Title = *patch.Title
		}
		if patch.Currency != nil {
			s.Currency = *patch.Currency
		}
		if patch.AllowEditorItems != nil {
			s.AllowEditorItems = *patch.AllowEditorItems
		}
		if hash != nil {
			s.PasscodeHash = *hash
		}
		return nil
	})
}

// ExportTotals renders the session's totals as an XLSX workbook.
func (m *Manager) ExportTotals(ctx context.Context, sessionID string) ([]byte, error) {
	s, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return export.TotalsXLSX(s, Totals(s))
}
