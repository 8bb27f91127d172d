package assign

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/mmynk/splitlive/internal/common"
	"github.com/mmynk/splitlive/internal/models"
)

func newSession(items ...models.Item) *models.Session {
	return &models.Session{
		ID:     "s1",
		Status: models.StatusAssigning,
		Participants: []models.Participant{
			{ID: "host", Name: "Host", Role: models.RoleOwner},
			{ID: "ana", Name: "Ana", Role: models.RoleEditor},
			{ID: "ben", Name: "Ben", Role: models.RoleEditor},
		},
		Items:       items,
		Assignments: models.Assignments{},
		SavedModes:  models.SavedModes{},
	}
}

func shareMap(shares []models.Share) map[string]float64 {
	m := make(map[string]float64, len(shares))
	for _, sh := range shares {
		m[sh.ParticipantID] = sh.Quantity
	}
	return m
}

func TestAssignIndividual(t *testing.T) {
	s := newSession(models.Item{ID: "beer", Name: "Beer", UnitPrice: 4, Quantity: 3})
	scope := models.ItemScope("beer")

	tests := []struct {
		name        string
		participant string
		quantity    float64
		assigned    bool
		wantErr     error
		want        map[string]float64
	}{
		{"host takes two", "host", 2, true, nil, map[string]float64{"host": 2}},
		{"ana takes one", "ana", 1, true, nil, map[string]float64{"host": 2, "ana": 1}},
		{"ben exceeds", "ben", 1, true, common.ErrInvalidCapacity, map[string]float64{"host": 2, "ana": 1}},
		{"host same claim again", "host", 2, true, nil, map[string]float64{"host": 2, "ana": 1}},
		{"host lowers to one", "host", 1, true, nil, map[string]float64{"host": 1, "ana": 1}},
		{"ben takes the last", "ben", 1, true, nil, map[string]float64{"host": 1, "ana": 1, "ben": 1}},
		{"fractional rejected", "ana", 0.5, true, common.ErrInvalidInput, map[string]float64{"host": 1, "ana": 1, "ben": 1}},
		{"ana unassigns", "ana", 1, false, nil, map[string]float64{"host": 1, "ben": 1}},
		{"unknown participant", "zoe", 1, true, common.ErrNotFound, map[string]float64{"host": 1, "ben": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Assign(s, scope, tt.participant, tt.quantity, tt.assigned)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Assign() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Assign() unexpected error: %v", err)
			}
			if got := shareMap(s.Assignments[scope]); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("shares = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAssignEqualSplit(t *testing.T) {
	s := newSession(models.Item{ID: "pizza", UnitPrice: 12, Quantity: 2, Mode: models.ModeGrupal})
	scope := models.ItemScope("pizza")

	for _, id := range []string{"host", "ana", "ben"} {
		if err := Assign(s, scope, id, 0, true); err != nil {
			t.Fatalf("Assign(%s) failed: %v", id, err)
		}
	}
	for _, sh := range s.Assignments[scope] {
		if math.Abs(sh.Quantity-2.0/3) > epsilon {
			t.Errorf("%s share = %v, want 2/3", sh.ParticipantID, sh.Quantity)
		}
	}

	if err := Assign(s, scope, "ben", 0, false); err != nil {
		t.Fatalf("Assign(ben, false) failed: %v", err)
	}
	if len(s.Assignments[scope]) != 2 {
		t.Fatalf("expected 2 members, got %d", len(s.Assignments[scope]))
	}
	for _, sh := range s.Assignments[scope] {
		if sh.Quantity != 1 {
			t.Errorf("%s share = %v, want 1", sh.ParticipantID, sh.Quantity)
		}
	}

	// Unit scopes are not claimable while the item is split between everyone.
	if err := Assign(s, models.UnitScope("pizza", 0), "ana", 1, true); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("unit claim on 'all' item error = %v, want ErrInvalidInput", err)
	}
}

func TestAssignPerUnit(t *testing.T) {
	s := newSession(models.Item{ID: "tacos", UnitPrice: 3, Quantity: 2, Mode: models.ModeGrupal, PerUnit: true})
	u0, u1 := models.UnitScope("tacos", 0), models.UnitScope("tacos", 1)

	mustAssign(t, s, u0, "ana")
	mustAssign(t, s, u1, "ana")
	mustAssign(t, s, u1, "ben")

	if got := shareMap(s.Assignments[u0]); !reflect.DeepEqual(got, map[string]float64{"ana": 1}) {
		t.Errorf("unit 0 = %v", got)
	}
	if got := shareMap(s.Assignments[u1]); !reflect.DeepEqual(got, map[string]float64{"ana": 0.5, "ben": 0.5}) {
		t.Errorf("unit 1 = %v", got)
	}
	if err := Assign(s, models.UnitScope("tacos", 2), "ana", 1, true); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("out of range unit error = %v, want ErrInvalidInput", err)
	}
	if err := Assign(s, models.ItemScope("tacos"), "ana", 1, true); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("item claim on per-unit item error = %v, want ErrInvalidInput", err)
	}
	if err := CheckCapacity(s, "tacos"); err != nil {
		t.Errorf("CheckCapacity() = %v", err)
	}
}

func mustAssign(t *testing.T, s *models.Session, scope models.Scope, id string) {
	t.Helper()
	if err := Assign(s, scope, id, 1, true); err != nil {
		t.Fatalf("Assign(%s, %s) failed: %v", scope, id, err)
	}
}

func TestAssignAll(t *testing.T) {
	s := newSession(models.Item{ID: "wine", UnitPrice: 30, Quantity: 1, Mode: models.ModeGrupal})
	scope := models.ItemScope("wine")

	if err := AssignAll(s, scope, true); err != nil {
		t.Fatalf("AssignAll() failed: %v", err)
	}
	if len(s.Assignments[scope]) != 3 {
		t.Fatalf("expected 3 members, got %d", len(s.Assignments[scope]))
	}
	if err := AssignAll(s, scope, false); err != nil {
		t.Fatalf("AssignAll(false) failed: %v", err)
	}
	if _, ok := s.Assignments[scope]; ok {
		t.Error("scope should be cleared")
	}

	s.Items = append(s.Items, models.Item{ID: "fries", UnitPrice: 5, Quantity: 1})
	if err := AssignAll(s, models.ItemScope("fries"), true); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("AssignAll on individual item error = %v, want ErrInvalidInput", err)
	}
}

func TestRemoveParticipantCascades(t *testing.T) {
	s := newSession(
		models.Item{ID: "pizza", UnitPrice: 12, Quantity: 1, Mode: models.ModeGrupal},
		models.Item{ID: "beer", UnitPrice: 4, Quantity: 2},
	)
	if err := AssignAll(s, models.ItemScope("pizza"), true); err != nil {
		t.Fatal(err)
	}
	if err := Assign(s, models.ItemScope("beer"), "ben", 2, true); err != nil {
		t.Fatal(err)
	}

	if err := RemoveParticipant(s, "ben"); err != nil {
		t.Fatalf("RemoveParticipant() failed: %v", err)
	}
	if s.Participant("ben") != nil {
		t.Error("ben should be gone")
	}
	if _, ok := s.Assignments[models.ItemScope("beer")]; ok {
		t.Error("ben's beer claim should be cleared")
	}
	for _, sh := range s.Assignments[models.ItemScope("pizza")] {
		if sh.Quantity != 0.5 {
			t.Errorf("%s pizza share = %v, want 0.5", sh.ParticipantID, sh.Quantity)
		}
	}
	if err := RemoveParticipant(s, "ben"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("second removal error = %v, want ErrNotFound", err)
	}
}

func TestRemoveItemCascades(t *testing.T) {
	s := newSession(models.Item{ID: "pizza", UnitPrice: 12, Quantity: 2, Mode: models.ModeGrupal})
	if err := AssignAll(s, models.ItemScope("pizza"), true); err != nil {
		t.Fatal(err)
	}
	if err := SwitchMode(s, "pizza", models.SplitUnit); err != nil {
		t.Fatal(err)
	}
	mustAssign(t, s, models.UnitScope("pizza", 1), "ana")

	if err := RemoveItem(s, "pizza"); err != nil {
		t.Fatalf("RemoveItem() failed: %v", err)
	}
	if len(s.Assignments) != 0 {
		t.Errorf("assignments left: %v", s.Assignments)
	}
	if _, ok := s.SavedModes["pizza"]; ok {
		t.Error("saved modes should be dropped with the item")
	}
}

func TestResizeItem(t *testing.T) {
	s := newSession(
		models.Item{ID: "beer", UnitPrice: 4, Quantity: 3},
		models.Item{ID: "pizza", UnitPrice: 12, Quantity: 2, Mode: models.ModeGrupal},
		models.Item{ID: "tacos", UnitPrice: 3, Quantity: 3, Mode: models.ModeGrupal, PerUnit: true},
	)
	if err := Assign(s, models.ItemScope("beer"), "ana", 3, true); err != nil {
		t.Fatal(err)
	}
	if err := ResizeItem(s, "beer", 2); !errors.Is(err, common.ErrInvalidCapacity) {
		t.Errorf("shrinking below claims error = %v, want ErrInvalidCapacity", err)
	}

	if err := AssignAll(s, models.ItemScope("pizza"), true); err != nil {
		t.Fatal(err)
	}
	if err := ResizeItem(s, "pizza", 3); err != nil {
		t.Fatalf("ResizeItem(pizza) failed: %v", err)
	}
	for _, sh := range s.Assignments[models.ItemScope("pizza")] {
		if sh.Quantity != 1 {
			t.Errorf("pizza share = %v, want 1", sh.Quantity)
		}
	}

	mustAssign(t, s, models.UnitScope("tacos", 2), "ben")
	if err := ResizeItem(s, "tacos", 2); err != nil {
		t.Fatalf("ResizeItem(tacos) failed: %v", err)
	}
	if _, ok := s.Assignments[models.UnitScope("tacos", 2)]; ok {
		t.Error("unit past the new quantity should be dropped")
	}
	if err := ResizeItem(s, "tacos", 0); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("zero quantity error = %v, want ErrInvalidInput", err)
	}
}
