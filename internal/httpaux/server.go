// Package httpaux implements the single-shot ephemeral HTTP servers and
// clients the large-file transfer mode uses to move data outside the TCP
// control connection: a GET endpoint for desktop-initiated sends and a
// multipart POST upload endpoint for receiver-hosted uploads.
//
// Grounded on streaming.go's listener/accept-loop shape, adapted to
// net/http; the manual multipart boundary extraction follows the large-file upload
// section of the transfer spec precisely rather than reaching for
// mime/multipart.Reader's full convenience API where the spec is explicit
// about trimming to exact content bytes.
package httpaux

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/easyshare-net/go-core/internal/cryptocore"
)

// Offload implements transfer.HTTPOffload.
type Offload struct{}

// NewOffload constructs the default HTTP offload helper.
func NewOffload() *Offload { return &Offload{} }

// ServeFile starts a one-shot HTTP server streaming path at GET /transfer/<token>
// and returns the URL to hand to the peer plus a shutdown func. The
// checksum callback, if non-nil, receives the running streaming checksum as
// bytes are written to the response so a desktop sender can report progress
// without re-reading the file.
func (o *Offload) ServeFile(path string, checksum func(int64, *cryptocore.Checksum)) (string, func(), error) {
	token := uuid.New().String()
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		return "", nil, fmt.Errorf("listen: %w", err)
	}

	mux := http.NewServeMux()
	served := make(chan struct{}, 1)
	mux.HandleFunc("/transfer/"+token, func(w http.ResponseWriter, r *http.Request) {
		defer func() { served <- struct{}{} }()
		f, err := os.Open(path)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		defer f.Close()

		sum := cryptocore.NewChecksum()
		var sent int64
		buf := make([]byte, 64*1024)
		for {
			n, rerr := f.Read(buf)
			if n > 0 {
				sum.Update(buf[:n])
				if _, werr := w.Write(buf[:n]); werr != nil {
					return
				}
				sent += int64(n)
				if checksum != nil {
					checksum(sent, sum)
				}
			}
			if rerr == io.EOF {
				return
			}
			if rerr != nil {
				return
			}
		}
	})

	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
	go func() {
		<-served
		time.AfterFunc(2*time.Second, shutdown)
	}()

	return fmt.Sprintf("http://%s/transfer/%s", localAddr(ln), token), shutdown, nil
}

func localAddr(ln net.Listener) string {
	addr := ln.Addr().(*net.TCPAddr)
	ip := "127.0.0.1"
	if !addr.IP.IsUnspecified() {
		ip = addr.IP.String()
	} else if addrs, err := net.InterfaceAddrs(); err == nil {
		// A wildcard listener is reachable on every interface; advertise the
		// first non-loopback IPv4 address so the peer can reach it.
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
				ip = ipnet.IP.String()
				break
			}
		}
	}
	return fmt.Sprintf("%s:%d", ip, addr.Port)
}

// Download performs a streaming GET of url into destPath, verifying the
// response's content length matches expectedSize.
func (o *Offload) Download(url string, destPath string, expectedSize int64) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	defer out.Close()

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if expectedSize > 0 && n != expectedSize {
		return fmt.Errorf("download: size mismatch got %d want %d", n, expectedSize)
	}
	return nil
}
