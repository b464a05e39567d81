package internal

import (
	"crypto/rand"
	"encoding/base64"
)

const resetSecretSize = 32

// NewResetSecret returns a fresh random reset secret encoded as
// unpadded base64url. The plaintext is handed to the caller once and
// never persisted; only its slow hash is stored.
func NewResetSecret() (string, error) {
	var secret [resetSecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(secret[:]), nil
}
