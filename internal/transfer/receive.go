package transfer

import (
	"fmt"
	"os"
	"time"

	"github.com/easyshare-net/go-core/internal/cryptocore"
	"github.com/easyshare-net/go-core/internal/model"
)

func (e *Engine) handleFileRequest(req *model.FileRequest) error {
	if e.acceptFile == nil || !e.acceptFile(*req) {
		return e.Sender.Send(&model.FileReject{ID: req.ID, Reason: "declined"})
	}

	e.mu.Lock()
	if e.recv != nil {
		e.mu.Unlock()
		return e.Sender.Send(&model.FileReject{ID: req.ID, Reason: "a transfer is already in flight"})
	}
	r := &activeReceive{
		id: req.ID, name: req.Name, mimeType: req.MimeType, size: req.Size, mode: req.Mode,
		startedAt: time.Now(),
		checksum:  cryptocore.NewChecksum(), chunks: make(map[int][]byte), wantSum: req.Checksum,
	}
	e.recv = r
	e.mu.Unlock()

	e.Sender.SetTransferActive(true)

	accept := &model.FileAccept{ID: req.ID}

	switch req.Mode {
	case model.ModeHTTPSend:
		go e.downloadFromSender(r, req.URL)
	case model.ModeHTTPReceive:
		url, shutdown, err := e.HTTP.ServeUpload(req.Size, func(path string, size int64, matched bool) error {
			return e.finishUploadReceive(r, path, size, matched)
		})
		if err != nil {
			e.clearRecv()
			e.Sender.SetTransferActive(false)
			return e.Sender.Send(&model.FileReject{ID: req.ID, Reason: "could not prepare upload endpoint"})
		}
		r.shutdown = shutdown
		accept.URL = url
	}

	return e.Sender.Send(accept)
}

// downloadFromSender pulls a ModeHTTPSend file from the sender's ephemeral
// server, moves it into the save directory on success, and acks the sender.
func (e *Engine) downloadFromSender(r *activeReceive, url string) {
	tmp := r.name + ".download"
	err := e.HTTP.Download(url, tmp, r.size)
	e.Sender.SetTransferActive(false)

	status := model.TransferFailed
	finalPath := ""
	if err != nil {
		e.Sender.Send(&model.FileAck{RequestID: r.id, Success: false})
	} else {
		finalPath = destPath(e.saveDirectory(), r.name)
		if merr := moveFile(tmp, finalPath); merr != nil {
			finalPath = ""
		} else {
			status = model.TransferCompleted
		}
		e.Sender.Send(&model.FileAck{RequestID: r.id, Success: status == model.TransferCompleted})
	}

	e.mu.Lock()
	e.recv = nil
	e.mu.Unlock()

	if status != model.TransferCompleted {
		return
	}
	if e.Callbacks.OnComplete != nil {
		e.Callbacks.OnComplete(model.Transfer{
			ID: r.id, Kind: model.TransferFile, Direction: model.DirectionReceived,
			Status: status, FileName: r.name, FilePath: finalPath, MimeType: r.mimeType,
			FileSize: r.size, BytesMoved: r.size,
			DurationMs:       time.Since(r.startedAt).Milliseconds(),
			SpeedBytesPerSec: speedBytesPerSec(r.size, r.startedAt),
			EndedAt:          time.Now(),
		})
	}
}

// finishUploadReceive is the ServeUpload completion callback for
// ModeHTTPReceive: matched reports whether the server-side byte count
// matched FileRequest.Size. On success, the uploaded temp file is moved
// into the save directory and a success file_ack is sent; on failure, no
// history entry is recorded (S7's no-entry-on-mismatch policy applies
// equally to the HTTP-offload path), and the ack reports failure.
func (e *Engine) finishUploadReceive(r *activeReceive, path string, size int64, matched bool) error {
	e.Sender.SetTransferActive(false)
	e.mu.Lock()
	e.recv = nil
	e.mu.Unlock()

	finalPath := ""
	if matched {
		finalPath = destPath(e.saveDirectory(), r.name)
		if err := moveFile(path, finalPath); err != nil {
			matched = false
			finalPath = ""
		}
	}

	e.Sender.Send(&model.FileAck{RequestID: r.id, Success: matched})

	if matched && e.Callbacks.OnComplete != nil {
		e.Callbacks.OnComplete(model.Transfer{
			ID: r.id, Kind: model.TransferFile, Direction: model.DirectionReceived,
			Status: model.TransferCompleted, FileName: r.name, FilePath: finalPath, MimeType: r.mimeType,
			FileSize: size, BytesMoved: size,
			DurationMs:       time.Since(r.startedAt).Milliseconds(),
			SpeedBytesPerSec: speedBytesPerSec(size, r.startedAt),
			EndedAt:          time.Now(),
		})
	}
	return nil
}

func (e *Engine) handleFileChunk(chunk *model.FileChunk) error {
	e.mu.Lock()
	r := e.recv
	if r == nil || r.id != chunk.ID {
		e.mu.Unlock()
		return nil
	}
	r.chunks[chunk.Index] = chunk.Data
	r.received += int64(len(chunk.Data))
	received := r.received
	total := r.size
	e.mu.Unlock()

	if e.Callbacks.OnProgress != nil {
		e.Callbacks.OnProgress(chunk.ID, received, total)
	}
	return nil
}

func (e *Engine) handleFileComplete(msg *model.FileComplete) error {
	e.mu.Lock()
	r := e.recv
	if r == nil || r.id != msg.ID {
		e.mu.Unlock()
		return nil
	}
	e.recv = nil
	e.mu.Unlock()

	e.Sender.SetTransferActive(false)

	data := reassemble(r.chunks, r.size)
	checksum := cryptocore.Sum(data)
	status := model.TransferCompleted
	finalPath := ""
	if checksum != msg.Checksum {
		status = model.TransferFailed
	} else {
		finalPath = destPath(e.saveDirectory(), r.name)
		if err := os.WriteFile(finalPath, data, 0644); err != nil {
			status = model.TransferFailed
			finalPath = ""
		}
	}

	e.Sender.Send(&model.FileAck{RequestID: r.id, Success: status == model.TransferCompleted})

	if status == model.TransferCompleted && e.Callbacks.OnComplete != nil {
		e.Callbacks.OnComplete(model.Transfer{
			ID: r.id, Kind: model.TransferFile, Direction: model.DirectionReceived,
			Status: status, FileName: r.name, FilePath: finalPath, MimeType: r.mimeType,
			FileSize: int64(len(data)), Checksum: checksum, BytesMoved: int64(len(data)),
			DurationMs:       time.Since(r.startedAt).Milliseconds(),
			SpeedBytesPerSec: speedBytesPerSec(int64(len(data)), r.startedAt),
			EndedAt:          time.Now(),
		})
	}
	if status == model.TransferFailed {
		return model.NewError(model.ErrIntegrity, fmt.Errorf("checksum mismatch for %s", r.name))
	}
	return nil
}

// reassemble concatenates chunks by ascending index into one contiguous
// buffer, tolerating out-of-order arrival on the wire (spec's ordering
// requirement binds the sender's emission order, not the receiver's
// acceptance order).
func reassemble(chunks map[int][]byte, expectedSize int64) []byte {
	out := make([]byte, 0, expectedSize)
	for i := 0; i < len(chunks); i++ {
		out = append(out, chunks[i]...)
	}
	return out
}

func (e *Engine) clearRecv() {
	e.mu.Lock()
	e.recv = nil
	e.mu.Unlock()
}
