package cryptocore

import (
	"encoding/base64"
	"fmt"

	"lukechampine.com/blake3"
)

// digestBytes is the number of leading bytes of the underlying hash kept in
// a checksum string; this is a truncated fingerprint, not a full digest.
const digestBytes = 16

// Checksum is an incremental digest object mirroring the spec's
// update()/digest() streaming checksum: feed it bytes as they arrive, read
// the current digest at any point, including mid-stream for progress
// reporting.
type Checksum struct {
	h *blake3.Hasher
}

// NewChecksum starts a fresh streaming checksum.
func NewChecksum() *Checksum {
	return &Checksum{h: blake3.New(32, nil)}
}

// Update feeds more bytes into the running digest.
func (c *Checksum) Update(b []byte) {
	c.h.Write(b)
}

// Digest returns the checksum of everything written so far, without
// finalizing the underlying hasher — more data can still be written.
func (c *Checksum) Digest() string {
	sum := c.h.Sum(nil)
	return base64.StdEncoding.EncodeToString(sum[:digestBytes])
}

// Sum is the batch convenience form: checksum an entire byte slice in one call.
func Sum(data []byte) string {
	c := NewChecksum()
	c.Update(data)
	return c.Digest()
}

// SizeTag is the synthetic checksum substitute used for large files whose
// content is never fully hashed (size:N, per the large-file transfer mode).
func SizeTag(size int64) string {
	return fmt.Sprintf("size:%d", size)
}
