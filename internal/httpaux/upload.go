package httpaux

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

// ServeUpload starts a one-shot HTTP server accepting a single POST of one
// file at /upload/<token>, either as multipart/form-data (the first file
// part's body is kept) or as a raw body, writes the file bytes to a temp
// file, and invokes
// onComplete(path, size, matched) once the request body has been fully
// read. matched reports whether the uploaded byte count equals
// expectedSize (<=0 skips the check); the response status reflects it so a
// misbehaving sender sees the mismatch immediately.
func (o *Offload) ServeUpload(expectedSize int64, onComplete func(path string, size int64, matched bool) error) (string, func(), error) {
	token := uuid.New().String()
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		return "", nil, fmt.Errorf("listen: %w", err)
	}

	mux := http.NewServeMux()
	served := make(chan struct{}, 1)
	mux.HandleFunc("/upload/"+token, func(w http.ResponseWriter, r *http.Request) {
		defer func() { served <- struct{}{} }()
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read failed", http.StatusBadRequest)
			return
		}

		content := body
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err == nil && mediaType == "multipart/form-data" {
			boundary := params["boundary"]
			if boundary == "" {
				http.Error(w, "missing boundary", http.StatusBadRequest)
				return
			}
			content, err = extractFirstFilePart(body, boundary)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		tmp, err := os.CreateTemp("", "easyshare-upload-*")
		if err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		defer tmp.Close()
		if _, err := tmp.Write(content); err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		matched := expectedSize <= 0 || int64(len(content)) == expectedSize
		if matched {
			w.WriteHeader(http.StatusOK)
		} else {
			http.Error(w, "uploaded size did not match file_request", http.StatusBadRequest)
		}
		if onComplete != nil {
			onComplete(tmp.Name(), int64(len(content)), matched)
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

	return fmt.Sprintf("http://%s/upload/%s", localAddr(ln), token), shutdown, nil
}

// extractFirstFilePart locates the first multipart section's content by
// finding the boundary markers and the blank-line that separates a part's
// headers from its body, per the spec's manual-extraction requirement
// rather than a general-purpose multipart reader: body runs from just past
// "\r\n\r\n" after the first "--boundary" marker up to (not including) the
// "\r\n--boundary" that starts the next part.
func extractFirstFilePart(body []byte, boundary string) ([]byte, error) {
	delim := []byte("--" + boundary)
	first := bytes.Index(body, delim)
	if first == -1 {
		return nil, fmt.Errorf("boundary not found")
	}
	rest := body[first+len(delim):]

	headerEnd := bytes.Index(rest, []byte("\r\n\r\n"))
	if headerEnd == -1 {
		return nil, fmt.Errorf("malformed part: no header terminator")
	}
	content := rest[headerEnd+4:]

	next := bytes.Index(content, append([]byte("\r\n"), delim...))
	if next == -1 {
		return nil, fmt.Errorf("malformed part: no closing boundary")
	}
	return content[:next], nil
}

// Upload POSTs path to url as a single-part multipart/form-data body.
func (o *Offload) Upload(url string, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	const boundary = "EasyShareBoundary"
	var buf bytes.Buffer
	buf.WriteString("--" + boundary + "\r\n")
	buf.WriteString(fmt.Sprintf("Content-Disposition: form-data; name=\"file\"; filename=%q\r\n", info.Name()))
	buf.WriteString("Content-Type: application/octet-stream\r\n\r\n")
	if _, err := io.Copy(&buf, f); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	buf.WriteString("\r\n--" + boundary + "--\r\n")

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload: unexpected status %d", resp.StatusCode)
	}
	return nil
}
