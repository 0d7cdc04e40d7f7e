// Package wire implements the EasyShare frame codec: a four-byte big-endian
// length prefix, a one-byte type code, and a JSON payload, plus an
// incremental buffer that can be fed arbitrary read()-sized slices and drain
// whole frames as they complete.
//
// Grounded on pkg/communication/communication.go's
// [4-byte BE len][JSON payload] framing and io.ReadFull read loop, extended
// with the one-byte type code the spec's wire table requires.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/easyshare-net/go-core/internal/model"
)

// MaxPayloadBytes bounds a single frame's JSON payload. A peer announcing a
// longer frame in its length header is a protocol error raised before any
// buffering happens, so a hostile peer can't force an unbounded allocation.
const MaxPayloadBytes = 10 << 20

// HeaderLen is the length of the length-prefix + type-code header that
// precedes every JSON payload.
const HeaderLen = 4 + 1

var typeConstructors = map[byte]func() model.Message{
	model.CodePing:          func() model.Message { return &model.Ping{} },
	model.CodePong:          func() model.Message { return &model.Pong{} },
	model.CodePairRequest:   func() model.Message { return &model.PairRequest{} },
	model.CodePairChallenge: func() model.Message { return &model.PairChallenge{} },
	model.CodePairResponse:  func() model.Message { return &model.PairResponse{} },
	model.CodePairConfirm:   func() model.Message { return &model.PairConfirm{} },
	model.CodePairReject:    func() model.Message { return &model.PairReject{} },
	model.CodeText:          func() model.Message { return &model.Text{} },
	model.CodeFileRequest:   func() model.Message { return &model.FileRequest{} },
	model.CodeFileAccept:    func() model.Message { return &model.FileAccept{} },
	model.CodeFileReject:    func() model.Message { return &model.FileReject{} },
	model.CodeFileChunk:     func() model.Message { return &model.FileChunk{} },
	model.CodeFileComplete:  func() model.Message { return &model.FileComplete{} },
	model.CodeFileAck:       func() model.Message { return &model.FileAck{} },
	model.CodeError:         func() model.Message { return &model.ErrorMsg{} },
}

// Frame marshals m to JSON and prefixes the length+type header. It errors if
// the encoded payload would exceed MaxPayloadBytes.
func Frame(m model.Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, model.NewError(model.ErrProtocol, fmt.Errorf("encode %s: %w", m.Type(), err))
	}
	if len(payload) > MaxPayloadBytes {
		return nil, model.NewError(model.ErrProtocol, fmt.Errorf("payload too large: %d bytes", len(payload)))
	}
	out := make([]byte, HeaderLen+len(payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(len(payload)))
	out[4] = m.TypeCode()
	copy(out[HeaderLen:], payload)
	return out, nil
}

// decode unmarshals a payload into the concrete Message for typeCode.
func decode(typeCode byte, payload []byte) (model.Message, error) {
	ctor, ok := typeConstructors[typeCode]
	if !ok {
		return nil, model.NewError(model.ErrProtocol, fmt.Errorf("unknown type code 0x%02x", typeCode))
	}
	m := ctor()
	if err := json.Unmarshal(payload, m); err != nil {
		return nil, model.NewError(model.ErrProtocol, fmt.Errorf("decode type 0x%02x: %w", typeCode, err))
	}
	return m, nil
}

// Buffer accumulates bytes read off a connection and yields whole frames.
// It never reallocates past what's needed: the backing array only grows to
// fit outstanding unframed bytes, and is compacted once the read cursor has
// consumed more than half of it, the same amortized-compaction trick
// bufio.Reader uses internally.
type Buffer struct {
	buf []byte
	off int
}

// Append appends newly-read bytes to the buffer.
func (b *Buffer) Append(p []byte) {
	b.buf = append(b.buf, p...)
}

// Next extracts and decodes the next whole frame, if one is buffered. It
// returns (msg, true, nil) on success, (nil, false, nil) when more bytes are
// needed, and (nil, true, err) when the buffered frame is malformed — in
// that case the frame's bytes are still consumed so the stream can resync on
// the next one, per the "discard the frame, don't retry it" requirement.
func (b *Buffer) Next() (model.Message, bool, error) {
	avail := b.buf[b.off:]
	if len(avail) < 4 {
		return nil, false, nil
	}
	length := binary.BigEndian.Uint32(avail[0:4])
	if length > MaxPayloadBytes {
		b.off = len(b.buf)
		b.compact()
		return nil, true, model.NewError(model.ErrProtocol, fmt.Errorf("frame length %d exceeds max %d", length, MaxPayloadBytes))
	}
	need := HeaderLen + int(length)
	if len(avail) < need {
		return nil, false, nil
	}
	typeCode := avail[4]
	payload := avail[HeaderLen:need]
	b.off += need
	m, err := decode(typeCode, payload)
	b.compact()
	if err != nil {
		return nil, true, err
	}
	return m, true, nil
}

func (b *Buffer) compact() {
	if b.off == 0 {
		return
	}
	if b.off == len(b.buf) {
		b.buf = b.buf[:0]
		b.off = 0
		return
	}
	if b.off > len(b.buf)/2 {
		b.buf = append(b.buf[:0], b.buf[b.off:]...)
		b.off = 0
	}
}

// Reset discards all buffered bytes.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
	b.off = 0
}
