// Package upload forwards fetched files to the image-bed upload API and
// maps its failures onto the chat error catalog.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrUnauthorized indicates the upload API rejected the bearer token.
	ErrUnauthorized = errors.New("upload rejected: unauthorized")
	// ErrStorageFull indicates the upload API reported exhausted quota.
	ErrStorageFull = errors.New("upload rejected: storage full")
	// ErrUploadFailed covers every other upload API failure.
	ErrUploadFailed = errors.New("upload failed")
)

// Request carries one file to forward.
type Request struct {
	FileName      string
	MimeType      string
	Data          []byte
	UploadChannel string
	APIToken      string
}

// Result is the successful upload outcome.
type Result struct {
	// URL is the public address of the stored file.
	URL string
}

// Forwarder posts files to the upload endpoint of the image bed.
type Forwarder struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewForwarder(baseURL string, log *slog.Logger) *Forwarder {
	if log == nil {
		log = slog.Default()
	}
	return &Forwarder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     log.With(slog.String("service", "upload")),
	}
}

// Forward uploads the file and returns the stored file's URL. The bearer
// token travels both as an Authorization header and as the authCode query
// parameter, matching both authentication modes the upload API supports.
func (f *Forwarder) Forward(ctx context.Context, req Request) (Result, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := createFilePart(writer, req.FileName, req.MimeType)
	if err != nil {
		return Result{}, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(req.Data); err != nil {
		return Result{}, fmt.Errorf("write multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Result{}, fmt.Errorf("close multipart body: %w", err)
	}

	query := url.Values{}
	query.Set("uploadChannel", req.UploadChannel)
	query.Set("returnFormat", "full")
	if req.APIToken != "" {
		query.Set("authCode", req.APIToken)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		f.baseURL+"/upload?"+query.Encode(), body)
	if err != nil {
		return Result{}, fmt.Errorf("build upload request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	if req.APIToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.APIToken)
	}

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read response: %v", ErrUploadFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Warn("upload api error",
			slog.Int("status", resp.StatusCode),
			slog.String("body", truncate(string(respBody), 512)))
		return Result{}, classifyError(resp.StatusCode, string(respBody))
	}

	var entries []struct {
		Src string `json:"src"`
	}
	if err := json.Unmarshal(respBody, &entries); err != nil {
		return Result{}, fmt.Errorf("decode upload response: %w", err)
	}
	if len(entries) == 0 || entries[0].Src == "" {
		return Result{}, fmt.Errorf("no file URL returned from upload API")
	}
	return Result{URL: entries[0].Src}, nil
}

// createFilePart adds a form file part carrying the real content type.
// multipart.Writer.CreateFormFile hardcodes application/octet-stream.
func createFilePart(writer *multipart.Writer, fileName, mimeType string) (io.Writer, error) {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(fileName)))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	header.Set("Content-Type", mimeType)
	return writer.CreatePart(header)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// classifyError maps an upload API failure body onto a chat error kind by
// substring, keeping the matching rules of the API's other clients.
func classifyError(status int, body string) error {
	switch {
	case strings.Contains(body, "Unauthorized") || strings.Contains(body, "401"):
		return ErrUnauthorized
	case strings.Contains(body, "quota") || strings.Contains(body, "space"):
		return ErrStorageFull
	default:
		return fmt.Errorf("%w: status %d", ErrUploadFailed, status)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
