package model

import "time"

// TransferKind tags which variant a Transfer record holds.
type TransferKind string

const (
	TransferText TransferKind = "text"
	TransferFile TransferKind = "file"
)

// TransferDirection records which side originated the transfer.
type TransferDirection string

const (
	DirectionSent     TransferDirection = "sent"
	DirectionReceived TransferDirection = "received"
)

// TransferStatus is the terminal or in-flight state of a Transfer record.
type TransferStatus string

const (
	TransferInProgress TransferStatus = "in_progress"
	TransferCompleted  TransferStatus = "completed"
	TransferFailed     TransferStatus = "failed"
	TransferCancelled  TransferStatus = "cancelled"
)

// Transfer is the history record the storage facade persists. It is a
// tagged union over Kind: TransferText records carry only Text, TransferFile
// records carry the file fields.
type Transfer struct {
	ID        string            `json:"id"`
	Kind      TransferKind      `json:"kind"`
	Direction TransferDirection `json:"direction"`
	PeerID    string            `json:"peerId"`
	PeerName  string            `json:"peerName"`
	Status    TransferStatus    `json:"status"`
	StartedAt time.Time         `json:"startedAt"`
	EndedAt   time.Time         `json:"endedAt,omitempty"`

	// TransferText
	Text string `json:"text,omitempty"`

	// TransferFile
	FileName         string  `json:"fileName,omitempty"`
	FilePath         string  `json:"filePath,omitempty"`
	MimeType         string  `json:"mimeType,omitempty"`
	FileSize         int64   `json:"fileSize,omitempty"`
	Checksum         string  `json:"checksum,omitempty"`
	BytesMoved       int64   `json:"bytesMoved,omitempty"`
	DurationMs       int64   `json:"durationMs,omitempty"`
	SpeedBytesPerSec float64 `json:"speedBytesPerSec,omitempty"`
}

// MaxHistoryEntries bounds the stored transfer history; adding past this
// cap evicts the oldest (by EndedAt) entries first.
const MaxHistoryEntries = 100
