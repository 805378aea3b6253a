package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"

	"smoothy/internal/logging"
)

// ErrEmptyResult is returned by SendFile when the file has no content.
var ErrEmptyResult = errors.New("result file is empty")

// Attachment describes how a result is presented to the client.
type Attachment struct {
	Path        string
	Filename    string
	ContentType string
}

// SendFile streams a finished result as an attachment with a known length.
// Headers are only written once the file has been opened and checked, so a
// non-nil error with headersSent=false leaves the response untouched.
func SendFile(ctx context.Context, w http.ResponseWriter, a Attachment, config Config) (headersSent bool, err error) {
	f, err := os.Open(a.Path)
	if err != nil {
		return false, fmt.Errorf("open result: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logging.Debug("Failed to close %s: %v", a.Path, cerr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("stat result: %w", err)
	}
	if info.Size() == 0 {
		return false, ErrEmptyResult
	}

	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	sw := NewWriter(ctx, w, info.Size(), config)
	defer sw.Close()

	_, err = io.Copy(sw, f)
	written, elapsed := sw.Stats()
	if err != nil {
		return true, fmt.Errorf("stream result after %s: %w", humanize.Bytes(uint64(written)), err)
	}

	logging.Debug("Streamed %s in %v", humanize.Bytes(uint64(written)), elapsed)
	return true, nil
}
