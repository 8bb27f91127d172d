package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrWrongPasscode = errors.New("wrong session passcode")
	ErrWeakPasscode  = errors.New("passcode must be at least 4 characters")
)

// ValidatePasscode checks if the passcode meets minimum requirements.
func ValidatePasscode(passcode string) error {
	if len(passcode) < 4 {
		return ErrWeakPasscode
	}
	return nil
}

// HashPasscode hashes a join passcode with bcrypt.
func HashPasscode(passcode string) (string, error) {
	if err := ValidatePasscode(passcode); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash passcode: %w", err)
	}
	return string(hashed), nil
}

// CheckPasscode compares a passcode against its hash. An empty hash means
// the session is open and any passcode is accepted.
func CheckPasscode(hash, passcode string) error {
	if hash == "" {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode)); err != nil {
		return ErrWrongPasscode
	}
	return nil
}
