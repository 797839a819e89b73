package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword bcrypt-hashes a plaintext password at the given cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword checks a plaintext password against a bcrypt hash.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// ResolveAgentHash picks the agent credential hash at startup. A configured
// hash wins; otherwise a configured plaintext password is hashed at the
// given cost so deployments can supply either form. Neither configured is a
// startup error.
func ResolveAgentHash(hash, plain string, cost int) (string, error) {
	if hash != "" {
		return hash, nil
	}
	if plain == "" {
		return "", errors.New("no agent credential configured")
	}
	return HashPassword(plain, cost)
}
