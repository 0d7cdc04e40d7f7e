// Package cryptocore implements the EasyShare pairing and data-plane crypto:
// passphrase-derived shared secrets, AEAD framing over nacl/secretbox, the
// challenge/response proof used to confirm pairing, and the checksum object
// used to verify completed transfers.
//
// Grounded on guard.go's constant-time shared-secret verification and
// security.go's manager-struct shape; the actual AEAD/KDF primitives come
// from golang.org/x/crypto, promoted here from an indirect teacher
// dependency (pulled in transitively under flynn/noise) to a direct one.
package cryptocore

import (
	"golang.org/x/crypto/blake2b"
)

// KDFIterations is the single named constant controlling KDF cost. Kept at
// the value the spec calls out explicitly; raising it (some deployments used
// 100,000) is a one-line change here and nowhere else.
const KDFIterations = 10000

// DeriveSharedSecret computes the deterministic shared secret both peers
// arrive at independently from a passphrase and their two device ids: sort
// the ids lexicographically, derive a salt from hashing "idA:idB", then run
// KDFIterations rounds of chained blake2b-512 hashing over passphrase‖salt,
// truncating the final digest to 32 bytes.
func DeriveSharedSecret(passphrase string, idA, idB string) [32]byte {
	first, second := idA, idB
	if second < first {
		first, second = second, first
	}
	saltDigest := blake2b.Sum512([]byte(first + ":" + second))
	salt := saltDigest[:16]

	round := salt
	for i := 0; i < KDFIterations; i++ {
		input := make([]byte, 0, len(passphrase)+len(round))
		input = append(input, []byte(passphrase)...)
		input = append(input, round...)
		digest := blake2b.Sum512(input)
		round = digest[:]
	}

	var secret [32]byte
	copy(secret[:], round[:32])
	return secret
}
