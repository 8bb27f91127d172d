package common

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError represents one failed field check.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s (got %v)", e.Field, e.Message, e.Value)
}

// Validator collects field failures so a request reports all of them at once.
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// Check records a failure for field unless ok holds.
func (v *Validator) Check(ok bool, field string, value any, message string) *Validator {
	if !ok {
		v.errors = append(v.errors, ValidationError{Field: field, Value: value, Message: message})
	}
	return v
}

// Required checks that a string field is not blank.
func (v *Validator) Required(field, value string) *Validator {
	return v.Check(strings.TrimSpace(value) != "", field, value, "is required")
}

// MaxLength checks a string field's length in runes.
func (v *Validator) MaxLength(field, value string, max int) *Validator {
	return v.Check(len([]rune(value)) <= max, field, value, fmt.Sprintf("must be at most %d characters", max))
}

// NonNegative checks a numeric field.
func (v *Validator) NonNegative(field string, value float64) *Validator {
	return v.Check(value >= 0, field, value, "must not be negative")
}

// Phone checks an optional phone number; empty passes.
func (v *Validator) Phone(field, value string) *Validator {
	if value == "" {
		return v
	}
	_, ok := NormalizePhone(value)
	return v.Check(ok, field, value, "must be an international phone number")
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Err returns an ErrInvalidInput listing every failure, or nil.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	messages := make([]string, len(v.errors))
	for i, e := range v.errors {
		messages[i] = e.Error()
	}
	return Invalidf("%s", strings.Join(messages, "; "))
}

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)

// NormalizePhone strips spaces, dashes and parentheses and checks the result
// is an international number: optional +, then 7 to 15 digits.
func NormalizePhone(phone string) (string, bool) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)
	if !phonePattern.MatchString(cleaned) {
		return "", false
	}
	if !strings.HasPrefix(cleaned, "+") {
		cleaned = "+" + cleaned
	}
	return cleaned, true
}
