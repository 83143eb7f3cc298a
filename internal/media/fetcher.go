// Package media turns a classified file reference into upload-ready bytes,
// converting HEIC/HEIF to JPEG through an image-transform proxy when one is
// configured.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/imgrelay/imgrelay/internal/classify"
)

// FileSource resolves and downloads chat-platform files.
type FileSource interface {
	FileURL(token, fileID string) (string, error)
	Download(ctx context.Context, token, fileID string) ([]byte, error)
}

// Fetcher downloads message attachments. A non-empty transform proxy URL
// enables the JPEG conversion attempt for HEIC input.
type Fetcher struct {
	files             FileSource
	httpClient        *http.Client
	transformProxyURL string
	logger            *slog.Logger
}

func NewFetcher(files FileSource, transformProxyURL string, log *slog.Logger) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{
		files:             files,
		httpClient:        &http.Client{Timeout: 60 * time.Second},
		transformProxyURL: transformProxyURL,
		logger:            log.With(slog.String("service", "media")),
	}
}

// Fetch returns the file bytes together with the possibly rewritten file
// reference. HEIC and HEIF files are first requested through the transform
// proxy asking for JPEG output; when that yields a JPEG response its bytes
// are used and the reference is renamed to .jpg. Every conversion failure
// falls through to a raw download.
func (f *Fetcher) Fetch(ctx context.Context, token string, ref classify.FileRef) ([]byte, classify.FileRef, error) {
	if ref.IsHEIC() && f.transformProxyURL != "" {
		if data, ok := f.convertToJPEG(ctx, token, ref); ok {
			ref.FileName = replaceExt(ref.FileName, "jpg")
			ref.MimeType = classify.MimeJPEG
			return data, ref, nil
		}
	}

	data, err := f.files.Download(ctx, token, ref.FileID)
	if err != nil {
		return nil, ref, fmt.Errorf("download %s: %w", ref.FileName, err)
	}
	return data, ref, nil
}

func (f *Fetcher) convertToJPEG(ctx context.Context, token string, ref classify.FileRef) ([]byte, bool) {
	fileURL, err := f.files.FileURL(token, ref.FileID)
	if err != nil {
		f.logger.Warn("heic conversion: resolve file url failed", slog.Any("error", err))
		return nil, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.transformProxyURL+fileURL, nil)
	if err != nil {
		return nil, false
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.logger.Warn("heic conversion: transform request failed", slog.Any("error", err))
		return nil, false
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		f.logger.Warn("heic conversion: transform status", slog.Int("status", resp.StatusCode))
		return nil, false
	}
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, classify.MimeJPEG) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, false
	}

	data, err := readAllWithLimit(resp.Body, MaxDownloadBytes)
	if err != nil {
		f.logger.Warn("heic conversion: read body failed", slog.Any("error", err))
		return nil, false
	}
	return data, true
}

func replaceExt(fileName, newExt string) string {
	if fileName == "" {
		return "file." + newExt
	}
	if idx := strings.LastIndex(fileName, "."); idx != -1 {
		return fileName[:idx] + "." + newExt
	}
	return fileName + "." + newExt
}
