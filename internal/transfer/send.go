package transfer

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/easyshare-net/go-core/internal/cryptocore"
	"github.com/easyshare-net/go-core/internal/model"
)

// SendFile begins sending path to the peer, choosing chunk mode or one of
// the HTTP-offload modes based on size. httpReceive forces the
// receiver-hosted-upload variant (used when the sender can't run its own
// ephemeral server, e.g. a mobile sender), only consulted for large files.
func (e *Engine) SendFile(path string, httpReceive bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return model.NewError(model.ErrIO, err)
	}

	id, err := cryptocore.NewMessageID()
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.send != nil {
		e.mu.Unlock()
		return model.NewError(model.ErrPolicy, fmt.Errorf("a transfer is already in flight"))
	}
	s := &activeSend{
		id: id, name: info.Name(), path: path, size: info.Size(),
		mimeType:  mime.TypeByExtension(filepath.Ext(path)),
		startedAt: time.Now(),
		done:      make(chan bool, 1),
		ackCh:     make(chan bool, 1),
	}
	e.send = s
	e.mu.Unlock()

	if info.Size() >= LargeFileThreshold {
		return e.sendLargeFile(s, path, httpReceive)
	}
	return e.sendChunked(s, path)
}

func (e *Engine) sendChunked(s *activeSend, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		e.clearSend()
		return model.NewError(model.ErrIO, err)
	}
	s.checksum = cryptocore.NewChecksum()
	s.checksum.Update(data)
	checksum := s.checksum.Digest()

	s.mode = model.ModeChunk
	// Every pacingYield, allow pacingChunkBytes worth of chunk data through,
	// so a fast local sender yields to the connection's dispatch goroutine
	// instead of saturating it (spec's backpressure requirement).
	bytesPerSecond := rate.Limit(float64(pacingChunkBytes) / pacingYield.Seconds())
	s.limiter = rate.NewLimiter(bytesPerSecond, pacingChunkBytes)

	if err := e.Sender.Send(&model.FileRequest{
		ID: s.id, Name: s.name, Size: s.size, MimeType: s.mimeType, Checksum: checksum, Mode: model.ModeChunk,
	}); err != nil {
		e.clearSend()
		return err
	}

	accepted := <-s.done
	if !accepted {
		e.clearSend()
		return model.NewError(model.ErrPolicy, fmt.Errorf("peer rejected file %s", s.name))
	}

	e.Sender.SetTransferActive(true)
	defer e.Sender.SetTransferActive(false)

	totalChunks := int((s.size + ChunkSize - 1) / ChunkSize)
	var sent int64
	for index := 0; sent < int64(len(data)); index++ {
		end := sent + ChunkSize
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		chunk := data[sent:end]
		if err := s.limiter.WaitN(context.Background(), len(chunk)); err != nil {
			e.clearSend()
			return model.NewError(model.ErrNetwork, err)
		}
		if err := e.Sender.Send(&model.FileChunk{ID: s.id, Index: index, TotalChunks: totalChunks, Data: chunk}); err != nil {
			e.clearSend()
			return err
		}
		sent = end
		if e.Callbacks.OnProgress != nil {
			e.Callbacks.OnProgress(s.id, sent, s.size)
		}
	}

	if err := e.Sender.Send(&model.FileComplete{ID: s.id, Checksum: checksum}); err != nil {
		e.clearSend()
		return err
	}

	// awaiting_ack: the receiver only knows the transfer succeeded once it
	// has verified the reassembled checksum, so the sender's own history
	// record waits on that verdict rather than assuming success.
	success := <-s.ackCh
	status := model.TransferCompleted
	if !success {
		status = model.TransferFailed
	}
	e.finishSend(status, checksum, s.size)
	if !success {
		return model.NewError(model.ErrIntegrity, fmt.Errorf("receiver reported checksum mismatch for %s", s.name))
	}
	return nil
}

func (e *Engine) sendLargeFile(s *activeSend, path string, httpReceive bool) error {
	s.mode = model.ModeHTTPSend
	if httpReceive {
		s.mode = model.ModeHTTPReceive
	}

	req := &model.FileRequest{
		ID: s.id, Name: s.name, Size: s.size, MimeType: s.mimeType,
		Checksum: cryptocore.SizeTag(s.size), Mode: s.mode,
	}

	if s.mode == model.ModeHTTPSend {
		url, shutdown, err := e.HTTP.ServeFile(path, nil)
		if err != nil {
			e.clearSend()
			return model.NewError(model.ErrNetwork, err)
		}
		defer shutdown()
		req.URL = url
	}

	if err := e.Sender.Send(req); err != nil {
		e.clearSend()
		return err
	}

	accepted := <-s.done
	if !accepted {
		e.clearSend()
		return model.NewError(model.ErrPolicy, fmt.Errorf("peer rejected file %s", s.name))
	}

	e.Sender.SetTransferActive(true)
	defer e.Sender.SetTransferActive(false)

	if s.mode == model.ModeHTTPReceive {
		if err := e.HTTP.Upload(s.uploadURL, path); err != nil {
			e.clearSend()
			return model.NewError(model.ErrNetwork, err)
		}
	}
	// For ModeHTTPSend the receiver pulls the file itself; either way we now
	// wait in awaiting_ack for the receiver's verified file_ack before
	// declaring the transfer done.

	success := <-s.ackCh
	status := model.TransferCompleted
	if !success {
		status = model.TransferFailed
	}
	e.finishSend(status, cryptocore.SizeTag(s.size), s.size)
	if !success {
		return model.NewError(model.ErrIntegrity, fmt.Errorf("receiver reported failed verification for %s", s.name))
	}
	return nil
}

func (e *Engine) handleFileAccept(msg *model.FileAccept) error {
	e.mu.Lock()
	s := e.send
	if s == nil || s.id != msg.ID {
		e.mu.Unlock()
		return nil
	}
	s.uploadURL = msg.URL
	e.mu.Unlock()
	select {
	case s.done <- true:
	default:
	}
	return nil
}

func (e *Engine) handleFileReject(msg *model.FileReject) error {
	e.mu.Lock()
	s := e.send
	e.mu.Unlock()
	if s == nil || s.id != msg.ID {
		return nil
	}
	select {
	case s.done <- false:
	default:
	}
	return nil
}

// handleFileAck resolves the awaiting_ack wait in sendChunked/sendLargeFile
// once the receiver reports whether its verification passed.
func (e *Engine) handleFileAck(msg *model.FileAck) error {
	e.mu.Lock()
	s := e.send
	e.mu.Unlock()
	if s == nil || s.id != msg.RequestID {
		return nil
	}
	select {
	case s.ackCh <- msg.Success:
	default:
	}
	return nil
}

func (e *Engine) finishSend(status model.TransferStatus, checksum string, size int64) {
	e.mu.Lock()
	s := e.send
	e.send = nil
	e.mu.Unlock()
	if s == nil {
		return
	}
	if e.Callbacks.OnComplete != nil {
		e.Callbacks.OnComplete(model.Transfer{
			ID: s.id, Kind: model.TransferFile, Direction: model.DirectionSent,
			Status: status, FileName: s.name, FilePath: s.path, MimeType: s.mimeType,
			FileSize: size, Checksum: checksum, BytesMoved: size,
			DurationMs:       time.Since(s.startedAt).Milliseconds(),
			SpeedBytesPerSec: speedBytesPerSec(size, s.startedAt),
			EndedAt:          time.Now(),
		})
	}
}

func (e *Engine) clearSend() {
	e.mu.Lock()
	e.send = nil
	e.mu.Unlock()
}
