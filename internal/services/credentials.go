package services

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier hashes and compares passwords. Callers must not log or
// persist plaintext passwords.
type CredentialVerifier interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
	// VerifyDummy performs a comparison of equivalent cost against a fixed
	// hash so that unknown accounts take as long to reject as known ones.
	VerifyDummy(password string)
}

// BcryptVerifier implements CredentialVerifier with bcrypt.
type BcryptVerifier struct {
	cost      int
	dummyHash []byte
}

// NewBcryptVerifier clamps cost into bcrypt's accepted range.
func NewBcryptVerifier(cost int) (*BcryptVerifier, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("authtrail-dummy-credential"), cost)
	if err != nil {
		return nil, err
	}

	return &BcryptVerifier{cost: cost, dummyHash: dummy}, nil
}

// Hash hashes a password using bcrypt
func (v *BcryptVerifier) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify verifies a password against a hash
func (v *BcryptVerifier) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (v *BcryptVerifier) VerifyDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(v.dummyHash, []byte(password))
}
