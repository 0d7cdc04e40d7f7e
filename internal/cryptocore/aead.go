package cryptocore

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// NonceSize is the secretbox nonce length the wire format's [nonce_len]
// header byte always records.
const NonceSize = 24

// Seal encrypts plaintext under key with a fresh random nonce and returns
// the framed [nonce_len(1)][nonce][ciphertext] message.
func Seal(key [32]byte, plaintext []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	out := make([]byte, 0, 1+NonceSize+len(plaintext)+secretbox.Overhead)
	out = append(out, NonceSize)
	out = append(out, nonce[:]...)
	out = secretbox.Seal(out, plaintext, &nonce, &key)
	return out, nil
}

// Open decrypts a frame produced by Seal. It returns an error (never
// partial plaintext) if the authenticator doesn't verify under key.
func Open(key [32]byte, framed []byte) ([]byte, error) {
	if len(framed) < 1 {
		return nil, fmt.Errorf("empty frame")
	}
	nonceLen := int(framed[0])
	if nonceLen != NonceSize || len(framed) < 1+nonceLen {
		return nil, fmt.Errorf("malformed frame: nonce_len=%d", nonceLen)
	}
	var nonce [NonceSize]byte
	copy(nonce[:], framed[1:1+nonceLen])
	ciphertext := framed[1+nonceLen:]

	plaintext, ok := secretbox.Open(nil, ciphertext, &nonce, &key)
	if !ok {
		return nil, fmt.Errorf("authentication failed")
	}
	return plaintext, nil
}
