package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the work factor for password hashing. The library
// default balances login latency against brute-force cost.
const bcryptCost = bcrypt.DefaultCost

// ErrPasswordTooShort is returned when a password fails the minimum length check.
var ErrPasswordTooShort = errors.New("password must be at least 8 characters")

// ErrWrongPassword is returned when a password does not match the stored hash.
var ErrWrongPassword = errors.New("wrong password")

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a stored hash.
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrWrongPassword
	}
	return err
}
