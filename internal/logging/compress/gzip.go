package compress

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/klauspost/compress/gzip"
)

// ErrEmptyInput is returned when Gzip is asked to compress zero bytes.
// Compressing nothing is a caller bug, not a valid empty stream.
var ErrEmptyInput = errors.New("compress: empty input")

// Gzip compresses data with the standard gzip format. The output starts with
// the usual 0x1f 0x8b magic so receivers can auto-detect the encoding, and
// decodes with any conformant gzip reader.
func Gzip(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("compress: write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress: close failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Gunzip reverses Gzip. Used by tests and kept exported for callers that
// need to inspect persisted compressed payloads.
func Gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("compress: open gzip stream: %w", err)
	}
	defer r.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("compress: read gzip stream: %w", err)
	}
	return buf.Bytes(), nil
}
