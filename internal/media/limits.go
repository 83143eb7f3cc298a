package media

import (
	"errors"
	"fmt"
	"io"
)

const (
	// MaxDownloadBytes caps how much is read from any remote file body,
	// independent of the configured per-upload size limit.
	MaxDownloadBytes int64 = 200 * 1024 * 1024
)

// ErrDownloadTooLarge indicates a remote file body exceeded MaxDownloadBytes.
var ErrDownloadTooLarge = errors.New("file download too large")

// readAllWithLimit reads from reader and rejects payloads larger than maxBytes.
func readAllWithLimit(reader io.Reader, maxBytes int64) ([]byte, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("max bytes must be greater than 0")
	}
	limited := &io.LimitedReader{
		R: reader,
		N: maxBytes + 1,
	}
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: max %d bytes", ErrDownloadTooLarge, maxBytes)
	}
	return data, nil
}
