package connection

import "encoding/binary"

// sealedBuffer accumulates bytes belonging to the encrypted transport
// envelope used once a connection has paired: each unit is a plain
// [len(4, BE)][secretbox-sealed blob], distinct from the unencrypted
// wire.Buffer frames that flow before pairing completes. Same amortized
// compaction approach as wire.Buffer.
type sealedBuffer struct {
	buf []byte
	off int
}

func (s *sealedBuffer) Append(p []byte) {
	s.buf = append(s.buf, p...)
}

// Next extracts one sealed blob, if a whole one is buffered.
func (s *sealedBuffer) Next() ([]byte, bool) {
	avail := s.buf[s.off:]
	if len(avail) < 4 {
		return nil, false
	}
	length := binary.BigEndian.Uint32(avail[0:4])
	need := 4 + int(length)
	if len(avail) < need {
		return nil, false
	}
	blob := make([]byte, length)
	copy(blob, avail[4:need])
	s.off += need
	s.compact()
	return blob, true
}

func (s *sealedBuffer) compact() {
	if s.off == 0 {
		return
	}
	if s.off == len(s.buf) {
		s.buf = s.buf[:0]
		s.off = 0
		return
	}
	if s.off > len(s.buf)/2 {
		s.buf = append(s.buf[:0], s.buf[s.off:]...)
		s.off = 0
	}
}

func frameSealed(sealed []byte) []byte {
	out := make([]byte, 4+len(sealed))
	binary.BigEndian.PutUint32(out[0:4], uint32(len(sealed)))
	copy(out[4:], sealed)
	return out
}
