// Package transfer implements the data-plane: text messages, small-file
// chunked transfer, and large-file HTTP-offload transfer, plus the
// reassembly and checksum verification on the receiving side.
//
// Grounded on streaming.go's VideoFrameAssembler (index-keyed map
// reassembly, adapted here from video packets to file chunks) and its
// callback-surface pattern; the HTTP-offload mode is new work for this
// domain, built with internal/httpaux.
package transfer

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/easyshare-net/go-core/internal/cryptocore"
	"github.com/easyshare-net/go-core/internal/model"
)

// ChunkSize is the fixed chunk length used by the small-file transfer mode.
const ChunkSize = 65536

// LargeFileThreshold is the size at which a file switches from chunk mode
// to the HTTP-offload mode.
const LargeFileThreshold = 5 * 1024 * 1024

// pacingYield is the brief pause injected by the rate limiter every
// pacingChunkBytes of chunk-mode data, keeping a fast local sender from
// saturating the connection's single dispatch goroutine.
const (
	pacingYield      = 10 * time.Millisecond
	pacingChunkBytes = 512 * 1024
)

// Sender is the subset of internal/connection.Manager the transfer engine
// needs: sending frames and flagging when a transfer is in flight so the
// keepalive timeout is suppressed.
type Sender interface {
	Send(msg model.Message) error
	SetTransferActive(active bool)
}

// Callbacks is the transfer-visible slice of the engine's callback surface.
type Callbacks struct {
	OnProgress func(transferID string, sent, total int64)
	OnComplete func(model.Transfer)
	OnText     func(body string)
}

// activeSend tracks an in-flight outbound file transfer.
type activeSend struct {
	id        string
	name      string
	path      string
	mimeType  string
	size      int64
	startedAt time.Time
	checksum  *cryptocore.Checksum
	mode      model.TransferMode
	limiter   *rate.Limiter
	uploadURL string
	done      chan bool // resolves the peer's file_accept/file_reject
	ackCh     chan bool // resolves the peer's final file_ack (awaiting_ack)
}

// activeReceive tracks an in-flight inbound file transfer.
type activeReceive struct {
	id        string
	name      string
	mimeType  string
	size      int64
	startedAt time.Time
	mode      model.TransferMode
	checksum  *cryptocore.Checksum
	chunks    map[int][]byte
	received  int64
	wantSum   string
	shutdown  func()
}

// Engine drives both sides of text and file transfers over one connection.
type Engine struct {
	Sender    Sender
	Callbacks Callbacks
	HTTP      HTTPOffload
	// SaveDir returns the directory incoming files are written to; consulted
	// on each completed receive so a settings change takes effect on the
	// next transfer. Nil means the current working directory.
	SaveDir func() string

	mu         sync.Mutex
	send       *activeSend
	recv       *activeReceive
	acceptFile func(model.FileRequest) bool
}

// HTTPOffload is the subset of internal/httpaux the engine needs for the
// large-file modes, kept as an interface so the engine's core logic doesn't
// depend on net/http directly.
type HTTPOffload interface {
	ServeFile(path string, checksum func(int64, *cryptocore.Checksum)) (url string, shutdown func(), err error)
	ServeUpload(expectedSize int64, onComplete func(path string, size int64, matched bool) error) (url string, shutdown func(), err error)
	Download(url string, destPath string, expectedSize int64) error
	Upload(url string, path string) error
}

// New constructs an Engine. acceptFile decides whether an incoming
// FileRequest should be accepted (the out-of-band policy hook; manual by
// default per the pairing/accept Open Question decision). saveDir is
// consulted on each completed receive for the destination directory; a nil
// saveDir defaults to the current working directory.
func New(sender Sender, cb Callbacks, http HTTPOffload, acceptFile func(model.FileRequest) bool, saveDir func() string) *Engine {
	return &Engine{Sender: sender, Callbacks: cb, HTTP: http, acceptFile: acceptFile, SaveDir: saveDir}
}

// saveDirectory resolves the configured save directory, defaulting to "."
func (e *Engine) saveDirectory() string {
	if e.SaveDir == nil {
		return "."
	}
	return e.SaveDir()
}

// SendText sends a plain text message.
func (e *Engine) SendText(body string) error {
	id, err := cryptocore.NewMessageID()
	if err != nil {
		return err
	}
	return e.Sender.Send(&model.Text{ID: id, Body: body})
}

// HandleMessage routes an inbound message that wasn't claimed by the
// connection manager's ping/pong/text/pairing handling.
func (e *Engine) HandleMessage(msg model.Message) error {
	switch v := msg.(type) {
	case *model.FileRequest:
		return e.handleFileRequest(v)
	case *model.FileAccept:
		return e.handleFileAccept(v)
	case *model.FileReject:
		return e.handleFileReject(v)
	case *model.FileChunk:
		return e.handleFileChunk(v)
	case *model.FileComplete:
		return e.handleFileComplete(v)
	case *model.FileAck:
		return e.handleFileAck(v)
	default:
		return fmt.Errorf("transfer engine: unhandled message type %s", msg.Type())
	}
}

// HandleDisconnect resolves any in-flight send/receive state when the
// underlying connection drops, so a blocked SendFile call (waiting on
// file_accept or file_ack) resolves as failed instead of hanging forever,
// and an in-progress upload/download server is torn down.
func (e *Engine) HandleDisconnect() {
	e.mu.Lock()
	s := e.send
	r := e.recv
	e.send = nil
	e.recv = nil
	e.mu.Unlock()

	if s != nil {
		select {
		case s.done <- false:
		default:
		}
		select {
		case s.ackCh <- false:
		default:
		}
	}
	if r != nil && r.shutdown != nil {
		r.shutdown()
	}
}
