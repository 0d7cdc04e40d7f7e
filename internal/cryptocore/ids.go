package cryptocore

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewDeviceID mints a random, URL-safe device identifier (16 random bytes).
func NewDeviceID() (string, error) {
	return randomID(16)
}

// NewMessageID mints a random, URL-safe message identifier (8 random bytes).
func NewMessageID() (string, error) {
	return randomID(8)
}

func randomID(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
