// Package api holds the JSON wire messages of splitlive.v1.SessionService.
//
// Scope keys in Assignments and in AssignRequest.ItemID use the
// "itemId" / "itemId_unit_n" convention; n is 0-based.
package api

import "encoding/json"

type CurrencyFormat struct {
	DecimalPlaces int    `json:"decimal_places"`
	NumberFormat  string `json:"number_format"`
	Symbol        string `json:"symbol"`
}

type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Phone string `json:"phone,omitempty"`
}

type Item struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	Mode      string  `json:"mode"`
	PerUnit   bool    `json:"per_unit"`
}

type Share struct {
	ParticipantID string  `json:"participant_id"`
	Quantity      float64 `json:"quantity"`
}

type Charge struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	ValueType    string  `json:"value_type"`
	IsDiscount   bool    `json:"is_discount"`
	Distribution string  `json:"distribution"`
}

type ChargeShare struct {
	ChargeID string  `json:"charge_id"`
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
}

type ParticipantTotal struct {
	ParticipantID string        `json:"participant_id"`
	Name          string        `json:"name"`
	Subtotal      float64       `json:"subtotal"`
	Charges       []ChargeShare `json:"charges"`
	Total         float64       `json:"total"`
}

// Snapshot is a saved split mode of one item. Units is keyed by unit index.
type Snapshot struct {
	Item  []Share         `json:"item,omitempty"`
	Units map[int][]Share `json:"units,omitempty"`
}

// Session is the full mutable state of a session. Totals is null unless the
// session is finalized.
type Session struct {
	ID               string                         `json:"id"`
	Title            string                         `json:"title"`
	Status           string                         `json:"status"`
	Currency         CurrencyFormat                 `json:"currency"`
	Subtotal         float64                        `json:"subtotal"`
	AllowEditorItems bool                           `json:"allow_editor_items"`
	HasPasscode      bool                           `json:"has_passcode"`
	CreatedAt        int64                          `json:"created_at"`
	ExpiresAt        int64                          `json:"expires_at"`
	LastUpdated      int64                          `json:"last_updated"`
	Participants     []Participant                  `json:"participants"`
	Items            []Item                         `json:"items"`
	Assignments      map[string][]Share             `json:"assignments"`
	Charges          []Charge                       `json:"charges"`
	Totals           []ParticipantTotal             `json:"totals"`
	SavedModes       map[string]map[string]Snapshot `json:"saved_modes,omitempty"`
}

// SessionResponse answers every mutation that has nothing else to report.
type SessionResponse struct {
	Session *Session `json:"session"`
}

type CreateSessionRequest struct {
	Title     string          `json:"title"`
	HostName  string          `json:"host_name"`
	HostPhone string          `json:"host_phone,omitempty"`
	Passcode  string          `json:"passcode,omitempty"`
	Currency  *CurrencyFormat `json:"currency,omitempty"`
	Subtotal  float64         `json:"subtotal"`
	Items     []Item          `json:"items"`
	Charges   []Charge        `json:"charges"`

	// Receipt is an OCR payload; when set it seeds title, subtotal, items
	// and charges instead of the fields above.
	Receipt json.RawMessage `json:"receipt,omitempty"`

	AllowEditorItems bool `json:"allow_editor_items"`
}

type CreateSessionResponse struct {
	Session    *Session `json:"session"`
	HostID     string   `json:"host_id"`
	OwnerToken string   `json:"owner_token"`
}

type JoinRequest struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Passcode  string `json:"passcode,omitempty"`
}

type JoinResponse struct {
	Participant Participant `json:"participant"`
	Session     *Session    `json:"session"`
}

type AssignRequest struct {
	SessionID     string  `json:"session_id"`
	ItemID        string  `json:"item_id"`
	ParticipantID string  `json:"participant_id"`
	Quantity      float64 `json:"quantity"`
	IsAssigned    bool    `json:"is_assigned"`
	UpdatedBy     string  `json:"updated_by"`
}

type AssignAllRequest struct {
	SessionID  string `json:"session_id"`
	ItemID     string `json:"item_id"`
	IsAssigned bool   `json:"is_assigned"`
	UpdatedBy  string `json:"updated_by"`
}

type SetItemModeRequest struct {
	SessionID string `json:"session_id"`
	ItemID    string `json:"item_id"`
	// Mode is individual, all or unit.
	Mode      string `json:"mode"`
	UpdatedBy string `json:"updated_by"`
}

type AddItemRequest struct {
	SessionID string `json:"session_id"`
	Item      Item   `json:"item"`
	UpdatedBy string `json:"updated_by"`
}

type AddItemResponse struct {
	Item    Item     `json:"item"`
	Session *Session `json:"session"`
}

type UpdateItemRequest struct {
	SessionID string   `json:"session_id"`
	ItemID    string   `json:"item_id"`
	Name      *string  `json:"name,omitempty"`
	UnitPrice *float64 `json:"unit_price,omitempty"`
	Quantity  *int     `json:"quantity,omitempty"`
	UpdatedBy string   `json:"updated_by"`
}

type DeleteItemRequest struct {
	SessionID string `json:"session_id"`
	ItemID    string `json:"item_id"`
	UpdatedBy string `json:"updated_by"`
}

type UpdateParticipantRequest struct {
	SessionID     string  `json:"session_id"`
	ParticipantID string  `json:"participant_id"`
	Name          *string `json:"name,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	UpdatedBy     string  `json:"updated_by"`
}

type RemoveParticipantRequest struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
	UpdatedBy     string `json:"updated_by"`
}

type UpdateChargesRequest struct {
	SessionID  string   `json:"session_id"`
	Charges    []Charge `json:"charges"`
	OwnerToken string   `json:"owner_token"`
}

type UpdateSettingsRequest struct {
	SessionID        string          `json:"session_id"`
	Title            *string         `json:"title,omitempty"`
	Currency         *CurrencyFormat `json:"currency,omitempty"`
	AllowEditorItems *bool           `json:"allow_editor_items,omitempty"`
	Passcode         *string         `json:"passcode,omitempty"`
	OwnerToken       string          `json:"owner_token"`
}

type FinalizeRequest struct {
	SessionID  string `json:"session_id"`
	OwnerToken string `json:"owner_token"`
}

type FinalizeResponse struct {
	Status string             `json:"status"`
	Totals []ParticipantTotal `json:"totals"`
	// Reconciled is false when the items do not add up to the receipt subtotal.
	Reconciled bool     `json:"reconciled"`
	Session    *Session `json:"session"`
}

type ReopenRequest struct {
	SessionID  string `json:"session_id"`
	OwnerToken string `json:"owner_token"`
}

type ReopenResponse struct {
	Status  string   `json:"status"`
	Session *Session `json:"session"`
}

type PollRequest struct {
	SessionID  string `json:"session_id"`
	LastUpdate int64  `json:"last_update"`
}

// PollResponse flattens the session next to has_changes. When nothing
// changed only has_changes and last_updated are set.
type PollResponse struct {
	HasChanges  bool  `json:"has_changes"`
	LastUpdated int64 `json:"last_updated"`
	*Session
}

type GetSummaryRequest struct {
	SessionID string `json:"session_id"`
}

type GetSummaryResponse struct {
	Text   string             `json:"text"`
	Totals []ParticipantTotal `json:"totals"`
}

type ExportTotalsRequest struct {
	SessionID string `json:"session_id"`
}

type ExportTotalsResponse struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
}
