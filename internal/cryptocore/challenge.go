package cryptocore

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// GenerateChallenge produces 32 fresh random bytes for a pairing challenge.
func GenerateChallenge() ([32]byte, error) {
	var c [32]byte
	if _, err := rand.Read(c[:]); err != nil {
		return c, fmt.Errorf("generate challenge: %w", err)
	}
	return c, nil
}

// ChallengeResponse computes the proof of secret knowledge for challenge:
// the first 32 bytes of blake2b-512(challenge ‖ secret).
func ChallengeResponse(challenge [32]byte, secret [32]byte) [32]byte {
	input := make([]byte, 0, len(challenge)+len(secret))
	input = append(input, challenge[:]...)
	input = append(input, secret[:]...)
	digest := blake2b.Sum512(input)
	var resp [32]byte
	copy(resp[:], digest[:32])
	return resp
}

// VerifyResponse recomputes the expected response and compares it to got in
// constant time, grounded on guard.go's VerifySharedSecret pattern.
func VerifyResponse(challenge [32]byte, secret [32]byte, got [32]byte) bool {
	want := ChallengeResponse(challenge, secret)
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}
