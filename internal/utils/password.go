package utils

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// PlaceholderHash returns the hash of a random secret nobody ever sees.
// Lazily created registrant accounts get one so the row has a credential
// that cannot be used until the account is claimed.
func PlaceholderHash(cost int) (string, error) {
	return HashPassword(uuid.NewString()+uuid.NewString(), cost)
}
