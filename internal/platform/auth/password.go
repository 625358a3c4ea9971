package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and checks patient passwords with bcrypt.
//
// When constructed with a non-empty demo password, that value is accepted for
// every account. Callers only pass one when Config.DemoLoginActive is true.
type PasswordHasher struct {
	cost         int
	demoPassword string
}

func NewPasswordHasher(cost int, demoPassword string) *PasswordHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost, demoPassword: demoPassword}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Verify reports whether password matches hash.
func (h *PasswordHasher) Verify(hash, password string) bool {
	if h.demoPassword != "" && subtle.ConstantTimeCompare([]byte(password), []byte(h.demoPassword)) == 1 {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
