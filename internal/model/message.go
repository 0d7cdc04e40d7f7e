package model

// Message is implemented by every wire message variant. Type returns the
// variant's lowercase wire name; TypeCode returns the single-byte code from
// the frame header. The JSON payload carries no "type" field: the decoder
// picks the variant from the header's type code alone.
type Message interface {
	Type() string
	TypeCode() byte
}

// Type codes, one per message variant. Values are part of the wire format
// and must never be renumbered.
const (
	CodePing         byte = 0x01
	CodePong         byte = 0x02
	CodePairRequest  byte = 0x10
	CodePairChallenge byte = 0x11
	CodePairResponse byte = 0x12
	CodePairConfirm  byte = 0x13
	CodePairReject   byte = 0x14
	CodeText         byte = 0x20
	CodeFileRequest  byte = 0x30
	CodeFileAccept   byte = 0x31
	CodeFileReject   byte = 0x32
	CodeFileChunk    byte = 0x33
	CodeFileComplete byte = 0x34
	CodeFileAck      byte = 0x35
	CodeError        byte = 0xFF
)

type Ping struct{}

func (Ping) Type() string   { return "ping" }
func (Ping) TypeCode() byte { return CodePing }

type Pong struct{}

func (Pong) Type() string   { return "pong" }
func (Pong) TypeCode() byte { return CodePong }

// PairRequest opens a pairing attempt; Device identifies the requester.
type PairRequest struct {
	Device DeviceInfo `json:"device"`
}

func (PairRequest) Type() string   { return "pair_request" }
func (PairRequest) TypeCode() byte { return CodePairRequest }

// PairChallenge is sent by the responder once it has a passphrase to try,
// carrying a fresh random challenge the initiator must answer.
type PairChallenge struct {
	Device    DeviceInfo `json:"device"`
	Challenge []byte     `json:"challenge"`
}

func (PairChallenge) Type() string   { return "pair_challenge" }
func (PairChallenge) TypeCode() byte { return CodePairChallenge }

// PairResponse answers a PairChallenge with the derived response.
type PairResponse struct {
	Response []byte `json:"response"`
}

func (PairResponse) Type() string   { return "pair_response" }
func (PairResponse) TypeCode() byte { return CodePairResponse }

// PairConfirm tells the initiator the response verified and pairing is
// complete. It is sent by the responder and carries the responder's own
// identity, which the initiator records as the remote device on receipt.
type PairConfirm struct {
	Device DeviceInfo `json:"device"`
}

func (PairConfirm) Type() string   { return "pair_confirm" }
func (PairConfirm) TypeCode() byte { return CodePairConfirm }

// PairReject carries a human-readable reason pairing failed or was declined.
type PairReject struct {
	Reason string `json:"reason"`
}

func (PairReject) Type() string   { return "pair_reject" }
func (PairReject) TypeCode() byte { return CodePairReject }

// Text is a plaintext chat-style message.
type Text struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

func (Text) Type() string   { return "text" }
func (Text) TypeCode() byte { return CodeText }

// TransferMode distinguishes the small-file chunk path from the large-file
// HTTP-offload path.
type TransferMode string

const (
	ModeChunk       TransferMode = "chunk"
	ModeHTTPSend    TransferMode = "http_send"    // receiver GETs from the sender
	ModeHTTPReceive TransferMode = "http_receive" // sender POSTs to the receiver
)

// FileRequest announces an incoming file and how it will be delivered.
type FileRequest struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Size     int64        `json:"size"`
	MimeType string       `json:"mimeType,omitempty"`
	Checksum string       `json:"checksum,omitempty"` // "size:N" for unhashed large files
	Mode     TransferMode `json:"mode"`
	URL      string       `json:"url,omitempty"` // GET url for ModeHTTPSend; empty otherwise (the upload url comes back in FileAccept.URL)
}

func (FileRequest) Type() string   { return "file_request" }
func (FileRequest) TypeCode() byte { return CodeFileRequest }

// FileAccept is the receiver's acceptance of a FileRequest. URL is filled in
// by the receiver for ModeHTTPReceive (the upload target the sender must POST to).
type FileAccept struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

func (FileAccept) Type() string   { return "file_accept" }
func (FileAccept) TypeCode() byte { return CodeFileAccept }

type FileReject struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

func (FileReject) Type() string   { return "file_reject" }
func (FileReject) TypeCode() byte { return CodeFileReject }

// FileChunk carries one 64KiB (at most) slice of a chunk-mode transfer.
type FileChunk struct {
	ID          string `json:"id"`
	Index       int    `json:"index"`
	TotalChunks int    `json:"totalChunks"`
	Data        []byte `json:"data"`
}

func (FileChunk) Type() string   { return "file_chunk" }
func (FileChunk) TypeCode() byte { return CodeFileChunk }

// FileComplete marks the final chunk and carries the checksum for verification.
type FileComplete struct {
	ID       string `json:"id"`
	Checksum string `json:"checksum"`
}

func (FileComplete) Type() string   { return "file_complete" }
func (FileComplete) TypeCode() byte { return CodeFileComplete }

// FileAck is the receiver's final verdict on a completed transfer (chunk
// reassembly checksum, or HTTP-offload upload/download outcome): whether the
// request named by RequestID was verified intact. The sender's awaiting_ack
// state resolves on this message.
type FileAck struct {
	RequestID string `json:"requestId"`
	Success   bool   `json:"success"`
}

func (FileAck) Type() string   { return "file_ack" }
func (FileAck) TypeCode() byte { return CodeFileAck }

// ErrorKind is the taxonomy from the error-handling section of the spec;
// each kind has its own propagation policy enforced by the caller.
type ErrorKind string

const (
	ErrNetwork  ErrorKind = "network"
	ErrProtocol ErrorKind = "protocol"
	ErrAuth     ErrorKind = "auth"
	ErrIntegrity ErrorKind = "integrity"
	ErrIO       ErrorKind = "io"
	ErrPolicy   ErrorKind = "policy"
)

// ErrorMsg is the wire representation of an out-of-band error notification.
type ErrorMsg struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (ErrorMsg) Type() string   { return "error" }
func (ErrorMsg) TypeCode() byte { return CodeError }

// Error is the Go-side error type used internally to carry a Kind alongside
// a wrapped cause, so callers can errors.As against a specific kind and the
// six propagation policies are never ad hoc string matches.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err under the given taxonomy kind.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
