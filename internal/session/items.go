package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mmynk/splitlive/internal/assign"
	"github.com/mmynk/splitlive/internal/auth"
	"github.com/mmynk/splitlive/internal/common"
	"github.com/mmynk/splitlive/internal/models"
)

const (
	maxNameLength  = 60
	maxTitleLength = 120
	maxDecimals    = 4
)

var numberFormats = map[string]bool{
	"1,234.56": true,
	"1.234,56": true,
	"1 234,56": true,
	"1234.56":  true,
}

func validateCurrency(c models.CurrencyFormat) error {
	return common.NewValidator().
		Check(c.DecimalPlaces >= 0 && c.DecimalPlaces <= maxDecimals, "decimal_places", c.DecimalPlaces, fmt.Sprintf("must be between 0 and %d", maxDecimals)).
		Check(numberFormats[c.NumberFormat], "number_format", c.NumberFormat, "is not a supported format").
		Err()
}

// normalizeItem validates an item and fills in its defaults. Items without
// an ID take their name; IDs that look like unit keys, or that are taken,
// are replaced so every scope key stays unambiguous.
func normalizeItem(it models.Item, taken func(id string) bool) (models.Item, error) {
	it.Name = strings.TrimSpace(it.Name)
	if it.Mode == "" {
		it.Mode = models.ModeIndividual
	}
	v := common.NewValidator().
		Required("name", it.Name).
		MaxLength("name", it.Name, maxNameLength).
		NonNegative("unit_price", it.UnitPrice).
		Check(it.Quantity >= 1, "quantity", it.Quantity, "must be at least 1").
		Check(it.Mode == models.ModeIndividual || it.Mode == models.ModeGrupal, "mode", it.Mode, "must be individual or grupal")
	if err := v.Err(); err != nil {
		return it, err
	}
	if it.Mode != models.ModeGrupal {
		it.PerUnit = false
	}

	id := strings.TrimSpace(it.ID)
	if id == "" {
		id = it.Name
	}
	if models.HasUnitSuffix(id) {
		id = uuid.New().String()
	}
	base := id
	for n := 2; taken(id); n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	it.ID = id
	return it, nil
}

func normalizeItems(items []models.Item) ([]models.Item, error) {
	seen := make(map[string]bool, len(items))
	out := make([]models.Item, 0, len(items))
	for _, it := range items {
		n, err := normalizeItem(it, func(id string) bool { return seen[id] })
		if err != nil {
			return nil, err
		}
		seen[n.ID] = true
		out = append(out, n)
	}
	return out, nil
}

func normalizeCharges(charges []models.Charge) ([]models.Charge, error) {
	seen := make(map[string]bool, len(charges))
	out := make([]models.Charge, 0, len(charges))
	for _, c := range charges {
		c.Name = strings.TrimSpace(c.Name)
		if c.Distribution == "" {
			c.Distribution = models.DistProportional
		}
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		v := common.NewValidator().
			Required("charge name", c.Name).
			NonNegative("charge value", c.Value).
			Check(c.ValueType == models.ValuePercent || c.ValueType == models.ValueFixed, "value_type", c.ValueType, "must be percent or fixed").
			Check(c.Distribution == models.DistProportional || c.Distribution == models.DistPerPerson || c.Distribution == models.DistFixedPerPerson,
				"distribution", c.Distribution, "must be proportional, per_person or fixed_per_person").
			Check(!seen[c.ID], "charge id", c.ID, "is duplicated")
		if err := v.Err(); err != nil {
			return nil, err
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out, nil
}

// requireItemEditor lets the host edit items, and editors too when the
// host allowed it.
func requireItemEditor(a auth.Actor, s *models.Session) error {
	if a.IsOwner(s) {
		return nil
	}
	if !s.AllowEditorItems {
		return common.Forbiddenf("only the host can edit items")
	}
	return auth.RequireMember(a, s)
}

// AddItem appends a new item.
func (m *Manager) AddItem(ctx context.Context, sessionID string, actor auth.Actor, item models.Item) (*models.Session, models.Item, error) {
	var added models.Item
	s, err := m.update(ctx, sessionID, func(s *models.Session) error {
		if err := requireAssigning(s); err != nil {
			return err
		}
		if err := requireItemEditor(actor, s); err != nil {
			return err
		}
		n, err := normalizeItem(item, func(id string) bool { return s.Item(id) != nil })
		if err != nil {
			return err
		}
		s.Items = append(s.Items, n)
		added = n
		return nil
	})
	if err != nil {
		return nil, models.Item{}, err
	}
	m.logger.Info("item added", "session_id", sessionID, "item_id", added.ID)
	return s, added, nil
}

// ItemPatch holds the fields UpdateItem changes; nil fields are left alone.
type ItemPatch struct {
	Name      *string
	UnitPrice *float64
	Quantity  *int
}

// UpdateItem edits an item. A smaller quantity must still fit the
// individual claims already made.
func (m *Manager) UpdateItem(ctx context.Context, sessionID string, actor auth.Actor, itemID string, patch ItemPatch) (*models.Session, error) {
	return m.update(ctx, sessionID, func(s *models.Session) error {
		if err := requireAssigning(s); err != nil {
			return err
		}
		if err := requireItemEditor(actor, s); err != nil {
			return err
		}
		item := s.Item(itemID)
		if item == nil {
			return common.NotFoundf("item %s", itemID)
		}

		v := common.NewValidator()
		if patch.Name != nil {
			v.Required("name", *patch.Name).MaxLength("name", *patch.Name, maxNameLength)
		}
		if patch.UnitPrice != nil {
			v.NonNegative("unit_price", *patch.UnitPrice)
		}
		if err := v.Err(); err != nil {
			return err
		}

		if patch.Quantity != nil && *patch.Quantity != item.Quantity {
			if err := assign.ResizeItem(s, itemID, *patch.Quantity); err != nil {
				return err
			}
		}
		if patch.Name != nil {
			item.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.UnitPrice != nil {
			item.UnitPrice = *patch.UnitPrice
		}
		return nil
	})
}

// DeleteItem removes an item and every claim on it.
func (m *Manager) DeleteItem(ctx context.Context, sessionID string, actor auth.Actor, itemID string) (*models.Session, error) {
	s, err := m.update(ctx, sessionID, func(s *models.Session) error {
		if err := requireAssigning(s); err != nil {
			return err
		}
		if err := requireItemEditor(actor, s); err != nil {
			return err
		}
		return assign.RemoveItem(s, itemID)
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("item deleted", "session_id", sessionID, "item_id", itemID)
	return s, nil
}
