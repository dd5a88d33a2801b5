package account

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashSecret hashes a password or PIN with bcrypt.
func HashSecret(secret string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
}

// SetPIN stores a withdrawal PIN (4–6 digits).
func (a *Account) SetPIN(pin string) error {
	if len(pin) < 4 || len(pin) > 6 {
		return errors.New("PIN must be 4 to 6 digits")
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return errors.New("PIN must be numeric")
		}
	}
	hash, err := HashSecret(pin)
	if err != nil {
		return fmt.Errorf("hash PIN: %w", err)
	}
	a.PINHash = hash
	return nil
}

// VerifyPIN checks the withdrawal PIN when one is set; accounts without a PIN pass.
func (a *Account) VerifyPIN(pin string) error {
	if len(a.PINHash) == 0 {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(a.PINHash, []byte(pin)); err != nil {
		return ErrInvalidPIN
	}
	return nil
}

// VerifyPassword checks the login password.
func (a *Account) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)) == nil
}
