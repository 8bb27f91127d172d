package api

import (
	"github.com/mmynk/splitlive/internal/common"
	"github.com/mmynk/splitlive/internal/models"
)

// FromSession converts a stored session to its wire form. Phone numbers are
// only for outbound notifications and are left out unless withPhones is set.
func FromSession(s *models.Session, withPhones bool) *Session {
	if s == nil {
		return nil
	}
	out := &Session{
		ID:               s.ID,
		Title:            s.Title,
		Status:           string(s.Status),
		Currency:         CurrencyFormat(s.Currency),
		Subtotal:         s.Subtotal,
		AllowEditorItems: s.AllowEditorItems,
		HasPasscode:      s.PasscodeHash != "",
		CreatedAt:        s.CreatedAt,
		ExpiresAt:        s.ExpiresAt,
		LastUpdated:      s.LastUpdated,
		Participants:     make([]Participant, len(s.Participants)),
		Items:            make([]Item, len(s.Items)),
		Assignments:      make(map[string][]Share, len(s.Assignments)),
		Charges:          FromCharges(s.Charges),
		Totals:           FromTotals(s.Totals),
	}
	for i, p := range s.Participants {
		out.Participants[i] = FromParticipant(p)
		if !withPhones {
			out.Participants[i].Phone = ""
		}
	}
	for i, it := range s.Items {
		out.Items[i] = FromItem(it)
	}
	for scope, shares := range s.Assignments {
		out.Assignments[scope.Key()] = fromShares(shares)
	}
	if len(s.SavedModes) > 0 {
		out.SavedModes = make(map[string]map[string]Snapshot, len(s.SavedModes))
		for itemID, modes := range s.SavedModes {
			m := make(map[string]Snapshot, len(modes))
			for mode, snap := range modes {
				ws := Snapshot{Item: fromShares(snap.Item)}
				if len(snap.Units) > 0 {
					ws.Units = make(map[int][]Share, len(snap.Units))
					for n, shares := range snap.Units {
						ws.Units[n] = fromShares(shares)
					}
				}
				m[string(mode)] = ws
			}
			out.SavedModes[itemID] = m
		}
	}
	return out
}

func FromParticipant(p models.Participant) Participant {
	return Participant{ID: p.ID, Name: p.Name, Role: string(p.Role), Phone: p.Phone}
}

func FromItem(it models.Item) Item {
	return Item{
		ID:        it.ID,
		Name:      it.Name,
		UnitPrice: it.UnitPrice,
		Quantity:  it.Quantity,
		Mode:      string(it.Mode),
		PerUnit:   it.PerUnit,
	}
}

func FromCharges(charges []models.Charge) []Charge {
	out := make([]Charge, len(charges))
	for i, c := range charges {
		out[i] = Charge{
			ID:           c.ID,
			Name:         c.Name,
			Value:        c.Value,
			ValueType:    string(c.ValueType),
			IsDiscount:   c.IsDiscount,
			Distribution: string(c.Distribution),
		}
	}
	return out
}

// FromTotals keeps nil as nil so unfinalized sessions send totals: null.
func FromTotals(totals []models.ParticipantTotal) []ParticipantTotal {
	if totals == nil {
		return nil
	}
	out := make([]ParticipantTotal, len(totals))
	for i, t := range totals {
		shares := make([]ChargeShare, len(t.Charges))
		for k, c := range t.Charges {
			shares[k] = ChargeShare{ChargeID: c.ChargeID, Name: c.Name, Amount: c.Amount}
		}
		out[i] = ParticipantTotal{
			ParticipantID: t.ParticipantID,
			Name:          t.Name,
			Subtotal:      t.Subtotal,
			Charges:       shares,
			Total:         t.Total,
		}
	}
	return out
}

func fromShares(shares []models.Share) []Share {
	if shares == nil {
		return nil
	}
	out := make([]Share, len(shares))
	for i, sh := range shares {
		out[i] = Share(sh)
	}
	return out
}

// Model converts a wire session back to the model the calculator and the
// assignment engine work on. Unparseable scope keys are rejected.
func (s *Session) Model() (*models.Session, error) {
	out := &models.Session{
		ID:               s.ID,
		Title:            s.Title,
		Status:           models.SessionStatus(s.Status),
		Currency:         models.CurrencyFormat(s.Currency),
		Subtotal:         s.Subtotal,
		AllowEditorItems: s.AllowEditorItems,
		CreatedAt:        s.CreatedAt,
		ExpiresAt:        s.ExpiresAt,
		LastUpdated:      s.LastUpdated,
		Participants:     make([]models.Participant, len(s.Participants)),
		Items:            ModelItems(s.Items),
		Assignments:      make(models.Assignments, len(s.Assignments)),
		Charges:          ModelCharges(s.Charges),
		Totals:           ModelTotals(s.Totals),
		SavedModes:       make(models.SavedModes, len(s.SavedModes)),
	}
	for i, p := range s.Participants {
		out.Participants[i] = models.Participant{ID: p.ID, Name: p.Name, Role: models.Role(p.Role), Phone: p.Phone}
	}
	for key, shares := range s.Assignments {
		scope, err := ParseScope(key)
		if err != nil {
			return nil, err
		}
		if len(shares) > 0 {
			out.Assignments[scope] = modelShares(shares)
		}
	}
	for itemID, modes := range s.SavedModes {
		m := make(map[models.SplitMode]models.Snapshot, len(modes))
		for mode, snap := range modes {
			ms := models.Snapshot{Item: modelShares(snap.Item)}
			if len(snap.Units) > 0 {
				ms.Units = make(map[int][]models.Share, len(snap.Units))
				for n, shares := range snap.Units {
					ms.Units[n] = modelShares(shares)
				}
			}
			m[models.SplitMode(mode)] = ms
		}
		out.SavedModes[itemID] = m
	}
	return out, nil
}

// ParseScope parses a wire scope key into an InvalidInput error on failure.
func ParseScope(key string) (models.Scope, error) {
	scope, err := models.ParseScope(key)
	if err != nil {
		return models.Scope{}, common.Invalidf("item_id %q: %v", key, err)
	}
	return scope, nil
}

func ModelItems(items []Item) []models.Item {
	out := make([]models.Item, len(items))
	for i, it := range items {
		out[i] = models.Item{
			ID:        it.ID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Mode:      models.ItemMode(it.Mode),
			PerUnit:   it.PerUnit,
		}
	}
	return out
}

func ModelCharges(charges []Charge) []models.Charge {
	out := make([]models.Charge, len(charges))
	for i, c := range charges {
		out[i] = models.Charge{
			ID:           c.ID,
			Name:         c.Name,
			Value:        c.Value,
			ValueType:    models.ValueType(c.ValueType),
			IsDiscount:   c.IsDiscount,
			Distribution: models.Distribution(c.Distribution),
		}
	}
	return out
}

func ModelTotals(totals []ParticipantTotal) []models.ParticipantTotal {
	if totals == nil {
		return nil
	}
	out := make([]models.ParticipantTotal, len(totals))
	for i, t := range totals {
		shares := make([]models.ChargeShare, len(t.Charges))
		for k, c := range t.Charges {
			shares[k] = models.ChargeShare{ChargeID: c.ChargeID, Name: c.Name, Amount: c.Amount}
		}
		out[i] = models.ParticipantTotal{
			ParticipantID: t.ParticipantID,
			Name:          t.Name,
			Subtotal:      t.Subtotal,
			Charges:       shares,
			Total:         t.Total,
		}
	}
	return out
}

// ModelCurrency converts an optional wire currency.
func ModelCurrency(c *CurrencyFormat) *models.CurrencyFormat {
	if c == nil {
		return nil
	}
	m := models.CurrencyFormat(*c)
	return &m
}

// ModelMode validates a wire split mode.
func ModelMode(mode string) (models.SplitMode, error) {
	m := models.SplitMode(mode)
	if !m.Valid() {
		return "", common.Invalidf("mode %q: want individual, all or unit", mode)
	}
	return m, nil
}

func modelShares(shares []Share) []models.Share {
	if shares == nil {
		return nil
	}
	out := make([]models.Share, len(shares))
	for i, sh := range shares {
		out[i] = models.Share(sh)
	}
	return out
}
