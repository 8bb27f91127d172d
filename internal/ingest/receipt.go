// Package ingest accepts the bootstrap payload produced by the receipt OCR
// service: items, a subtotal and optional charges. The payload is validated
// against a JSON schema before anything is seeded from it.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mmynk/splitlive/internal/common"
	"github.com/mmynk/splitlive/internal/models"
)

const receiptSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["items"],
  "properties": {
    "title": {"type": "string", "maxLength": 120},
    "subtotal": {"type": "number", "minimum": 0},
    "items": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "unit_price"],
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string", "minLength": 1},
          "unit_price": {"type": "number", "minimum": 0},
          "quantity": {"type": "integer", "minimum": 1},
          "mode": {"enum": ["individual", "grupal"]}
        }
      }
    },
    "charges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "value", "value_type"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "value": {"type": "number", "minimum": 0},
          "value_type": {"enum": ["percent", "fixed"]},
          "is_discount": {"type": "boolean"},
          "distribution": {"enum": ["proportional", "per_person", "fixed_per_person"]}
        }
      }
    }
  }
}`

// Receipt is the decoded OCR payload.
type Receipt struct {
	Title    string          `json:"title"`
	Subtotal float64         `json:"subtotal"`
	Items    []ReceiptItem   `json:"items"`
	Charges  []ReceiptCharge `json:"charges"`
}

// ReceiptItem is one extracted line. ID is often absent.
type ReceiptItem struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	Mode      string  `json:"mode"`
}

// ReceiptCharge is a tax, tip or discount printed on the receipt.
type ReceiptCharge struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	ValueType    string  `json:"value_type"`
	IsDiscount   bool    `json:"is_discount"`
	Distribution string  `json:"distribution"`
}

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("receipt.json", bytes.NewReader([]byte(receiptSchema))); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("receipt.json")
})

// Parse validates data against the receipt schema and decodes it.
// Malformed payloads yield common.ErrInvalidInput.
func Parse(data []byte) (*Receipt, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, common.NewAppError("INVALID_INPUT", "receipt is not valid JSON", fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}
	if err := schema.Validate(v); err != nil {
		return nil, common.NewAppError("INVALID_INPUT", "receipt does not match schema", fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}

	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &r, nil
}

// ModelItems converts the extracted lines. IDs are kept as given; the
// session layer fills in missing ones. A missing quantity means one unit.
func (r *Receipt) ModelItems() []models.Item {
	items := make([]models.Item, len(r.Items))
	for i, it := range r.Items {
		qty := it.Quantity
		if qty == 0 {
			qty = 1
		}
		mode := models.ModeIndividual
		if it.Mode == string(models.ModeGrupal) {
			mode = models.ModeGrupal
		}
		items[i] = models.Item{
			ID:        it.ID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  qty,
			Mode:      mode,
		}
	}
	return items
}

// ModelCharges converts the extracted charges; distribution defaults to proportional.
func (r *Receipt) ModelCharges() []models.Charge {
	charges := make([]models.Charge, len(r.Charges))
	for i, c := range r.Charges {
		dist := models.Distribution(c.Distribution)
		if dist == "" {
			dist = models.DistProportional
		}
		charges[i] = models.Charge{
			Name:         c.Name,
			Value:        c.Value,
			ValueType:    models.ValueType(c.ValueType),
			IsDiscount:   c.IsDiscount,
			Distribution: dist,
		}
	}
	return charges
}
