package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password. A cost outside bcrypt's range falls
// back to the default.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

var decoyHashes sync.Map

// CompareDecoy spends the same bcrypt work as ComparePassword for a login whose
// email is unknown, so response time does not reveal which emails are registered.
// It always fails.
func CompareDecoy(plain string, cost int) error {
	hash, ok := decoyHashes.Load(cost)
	if !ok {
		generated, err := HashPassword("decoy-password", cost)
		if err != nil {
			return err
		}
		hash, _ = decoyHashes.LoadOrStore(cost, generated)
	}
	if err := ComparePassword(hash.(string), plain); err != nil {
		return err
	}
	return bcrypt.ErrMismatchedHashAndPassword
}
