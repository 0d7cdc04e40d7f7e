package wire

import (
	"testing"

	"github.com/easyshare-net/go-core/internal/model"
)

func TestFrameRoundTrip(t *testing.T) {
	cases := []model.Message{
		&model.Ping{},
		&model.Text{ID: "m1", Body: "hello"},
		&model.FileChunk{ID: "f1", Index: 3, Data: []byte{1, 2, 3, 4}},
		&model.ErrorMsg{Kind: model.ErrIntegrity, Message: "checksum mismatch"},
	}

	var buf Buffer
	for _, m := range cases {
		f, err := Frame(m)
		if err != nil {
			t.Fatalf("Frame(%v): %v", m, err)
		}
		buf.Append(f)
	}

	for i, want := range cases {
		got, ok, err := buf.Next()
		if err != nil {
			t.Fatalf("Next() #%d: %v", i, err)
		}
		if !ok {
			t.Fatalf("Next() #%d: expected a frame, got none", i)
		}
		if got.Type() != want.Type() {
			t.Fatalf("Next() #%d: type = %s, want %s", i, got.Type(), want.Type())
		}
	}

	if _, ok, _ := buf.Next(); ok {
		t.Fatalf("Next() after draining all frames should return ok=false")
	}
}

func TestBufferPartialAppend(t *testing.T) {
	f, err := Frame(&model.Text{ID: "m1", Body: "partial"})
	if err != nil {
		t.Fatal(err)
	}

	var buf Buffer
	mid := len(f) / 2
	buf.Append(f[:mid])
	if _, ok, err := buf.Next(); ok || err != nil {
		t.Fatalf("Next() on partial frame should return ok=false, err=nil; got ok=%v err=%v", ok, err)
	}
	buf.Append(f[mid:])
	got, ok, err := buf.Next()
	if err != nil || !ok {
		t.Fatalf("Next() after full append: ok=%v err=%v", ok, err)
	}
	if got.(*model.Text).Body != "partial" {
		t.Fatalf("decoded body = %q", got.(*model.Text).Body)
	}
}

func TestBufferMalformedJSONDiscarded(t *testing.T) {
	good, err := Frame(&model.Ping{})
	if err != nil {
		t.Fatal(err)
	}

	// Hand-build a frame with a valid header but invalid JSON payload for
	// the "text" type code, followed by a well-formed ping frame, and
	// confirm the malformed frame is discarded (error returned once) without
	// blocking extraction of the frame that follows.
	badPayload := []byte("not json")
	bad := make([]byte, HeaderLen+len(badPayload))
	bad[0], bad[1], bad[2], bad[3] = 0, 0, 0, byte(len(badPayload))
	bad[4] = model.CodeText
	copy(bad[HeaderLen:], badPayload)

	var buf Buffer
	buf.Append(bad)
	buf.Append(good)

	_, ok, err := buf.Next()
	if err == nil || !ok {
		t.Fatalf("Next() on malformed frame should return ok=true, err!=nil; got ok=%v err=%v", ok, err)
	}

	got, ok, err := buf.Next()
	if err != nil || !ok {
		t.Fatalf("Next() on frame after malformed one: ok=%v err=%v", ok, err)
	}
	if got.Type() != "ping" {
		t.Fatalf("expected ping after malformed frame, got %s", got.Type())
	}
}

func TestOversizedFrameRejected(t *testing.T) {
	var buf Buffer
	header := make([]byte, HeaderLen)
	// Length header claims more than MaxPayloadBytes.
	overSize := uint32(MaxPayloadBytes + 1)
	header[0] = byte(overSize >> 24)
	header[1] = byte(overSize >> 16)
	header[2] = byte(overSize >> 8)
	header[3] = byte(overSize)
	header[4] = model.CodePing
	buf.Append(header)

	_, ok, err := buf.Next()
	if err == nil || !ok {
		t.Fatalf("Next() on oversized frame should return ok=true, err!=nil; got ok=%v err=%v", ok, err)
	}
}
