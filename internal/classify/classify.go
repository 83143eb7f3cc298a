// Package classify derives an uploadable file reference from an inbound
// Telegram message and validates it against the bot's allow-list and size
// cap.
package classify

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/imgrelay/imgrelay/internal/botconfig"
)

var (
	// ErrInvalidFileType rejects a MIME type outside the allow-list.
	ErrInvalidFileType = errors.New("file type is not allowed")
	// ErrFileTooLarge rejects a file over the configured size cap.
	ErrFileTooLarge = errors.New("file exceeds the size cap")
)

const (
	MimeJPEG        = "image/jpeg"
	mimeHEIC        = "image/heic"
	mimeHEIF        = "image/heif"
	mimeOctetStream = "application/octet-stream"
)

// FileRef identifies one uploadable file from a message.
type FileRef struct {
	FileID   string
	FileName string
	FileSize int64
	MimeType string
}

// FromMessage extracts a FileRef from the message's photo or document.
// Photos arrive as multiple renditions; the largest one wins. The second
// return value is false when the message carries no file.
func FromMessage(msg *tgbotapi.Message) (FileRef, bool) {
	if msg == nil {
		return FileRef{}, false
	}
	if len(msg.Photo) > 0 {
		photo := largestPhoto(msg.Photo)
		return FileRef{
			FileID:   photo.FileID,
			FileName: fmt.Sprintf("photo_%s.jpg", photo.FileUniqueID),
			FileSize: int64(photo.FileSize),
			MimeType: MimeJPEG,
		}, true
	}
	if msg.Document != nil {
		doc := msg.Document
		name := doc.FileName
		if name == "" {
			name = fmt.Sprintf("file_%s", doc.FileUniqueID)
		}
		ref := FileRef{
			FileID:   doc.FileID,
			FileName: name,
			FileSize: int64(doc.FileSize),
			MimeType: doc.MimeType,
		}
		ref.MimeType = sniffMimeType(ref.MimeType, ref.FileName)
		return ref, true
	}
	return FileRef{}, false
}

// IsHEIC reports whether ref should go through the JPEG fallback conversion.
func (ref FileRef) IsHEIC() bool {
	switch ref.MimeType {
	case mimeHEIC, mimeHEIF:
		return true
	}
	if ref.FileName == "" {
		return false
	}
	lower := strings.ToLower(ref.FileName)
	return strings.HasSuffix(lower, ".heic") || strings.HasSuffix(lower, ".heif")
}

// Validate applies the allow-list first, then the size cap. Both checks are
// terminal.
func Validate(ref FileRef, settings botconfig.Settings) error {
	if !settings.AllowsFileType(ref.MimeType) {
		return fmt.Errorf("%w: %s", ErrInvalidFileType, ref.MimeType)
	}
	if ref.FileSize > settings.MaxFileSizeBytes() {
		return fmt.Errorf("%w: %d bytes, cap %d MB", ErrFileTooLarge, ref.FileSize, settings.MaxFileSizeMB)
	}
	return nil
}

// sniffMimeType reclassifies HEIC/HEIF files that arrive with no MIME type
// or the generic binary one, which is how most Telegram clients send them.
func sniffMimeType(declared, fileName string) string {
	if declared != "" && declared != mimeOctetStream {
		return declared
	}
	lower := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lower, ".heic"):
		return mimeHEIC
	case strings.HasSuffix(lower, ".heif"):
		return mimeHEIF
	}
	return declared
}

func largestPhoto(items []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := items[0]
	for _, item := range items[1:] {
		if item.FileSize > best.FileSize {
			best = item
		}
	}
	return best
}
