package common

import (
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+56 9 1234 5678", "+56912345678", true},
		{"(555) 123-4567", "+5551234567", true},
		{"+1-555-0100", "+15550100", true},
		{"12345", "", false},
		{"0123456789", "", false},
		{"phone", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizePhone(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("NormalizePhone(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestValidator(t *testing.T) {
	err := NewValidator().
		Required("name", " ").
		NonNegative("unit_price", -1).
		Phone("phone", "").
		MaxLength("title", "ok", 10).
		Err()
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput, got %v", err)
	}

	if err := NewValidator().Required("name", "Ana").Phone("phone", "+56912345678").Err(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
