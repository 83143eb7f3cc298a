package classify

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/imgrelay/imgrelay/internal/botconfig"
)

func testSettings() botconfig.Settings {
	return botconfig.Settings{
		AllowedFileTypes: []string{"image/jpeg", "image/png", "image/heic"},
		MaxFileSizeMB:    50,
	}
}

func TestFromMessagePicksLargestPhoto(t *testing.T) {
	t.Parallel()

	msg := &tgbotapi.Message{
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", FileUniqueID: "u1", FileSize: 100},
			{FileID: "large", FileUniqueID: "u2", FileSize: 9000},
			{FileID: "medium", FileUniqueID: "u3", FileSize: 4000},
		},
	}
	ref, ok := FromMessage(msg)
	if !ok {
		t.Fatal("expected a file ref")
	}
	if ref.FileID != "large" {
		t.Fatalf("unexpected file id: %s", ref.FileID)
	}
	if ref.FileName != "photo_u2.jpg" {
		t.Fatalf("unexpected name: %s", ref.FileName)
	}
	if ref.MimeType != "image/jpeg" || ref.FileSize != 9000 {
		t.Fatalf("unexpected ref: %+v", ref)
	}
}

func TestFromMessageDocument(t *testing.T) {
	t.Parallel()

	msg := &tgbotapi.Message{
		Document: &tgbotapi.Document{
			FileID:       "doc-1",
			FileUniqueID: "du-1",
			FileName:     "a.png",
			MimeType:     "image/png",
			FileSize:     1000,
		},
	}
	ref, ok := FromMessage(msg)
	if !ok {
		t.Fatal("expected a file ref")
	}
	if ref.FileName != "a.png" || ref.MimeType != "image/png" || ref.FileSize != 1000 {
		t.Fatalf("unexpected ref: %+v", ref)
	}
}

func TestFromMessageDocumentWithoutName(t *testing.T) {
	t.Parallel()

	msg := &tgbotapi.Message{
		Document: &tgbotapi.Document{FileID: "doc-2", FileUniqueID: "du-2"},
	}
	ref, ok := FromMessage(msg)
	if !ok {
		t.Fatal("expected a file ref")
	}
	if ref.FileName != "file_du-2" {
		t.Fatalf("unexpected name: %s", ref.FileName)
	}
}

func TestFromMessageNoFile(t *testing.T) {
	t.Parallel()

	if _, ok := FromMessage(&tgbotapi.Message{Text: "hello"}); ok {
		t.Fatal("text message must not yield a file ref")
	}
	if _, ok := FromMessage(nil); ok {
		t.Fatal("nil message must not yield a file ref")
	}
}

func TestHEICSniffing(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		declared string
		fileName string
		want     string
	}{
		{"octet-stream heic", "application/octet-stream", "photo.heic", "image/heic"},
		{"octet-stream heif", "application/octet-stream", "photo.HEIF", "image/heif"},
		{"empty mime heic", "", "IMG_0001.HEIC", "image/heic"},
		{"declared mime kept", "image/png", "photo.heic", "image/png"},
		{"plain binary kept", "application/octet-stream", "data.bin", "application/octet-stream"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			msg := &tgbotapi.Message{
				Document: &tgbotapi.Document{
					FileID:       "id",
					FileUniqueID: "uid",
					FileName:     tc.fileName,
					MimeType:     tc.declared,
				},
			}
			ref, ok := FromMessage(msg)
			if !ok {
				t.Fatal("expected a file ref")
			}
			if ref.MimeType != tc.want {
				t.Fatalf("mime = %s, want %s", ref.MimeType, tc.want)
			}
		})
	}
}

func TestIsHEIC(t *testing.T) {
	t.Parallel()

	if !(FileRef{MimeType: "image/heic"}).IsHEIC() {
		t.Fatal("heic mime must be detected")
	}
	if !(FileRef{MimeType: "image/jpeg", FileName: "x.HEIF"}).IsHEIC() {
		t.Fatal("heif extension must be detected")
	}
	if (FileRef{MimeType: "image/jpeg", FileName: "x.jpg"}).IsHEIC() {
		t.Fatal("jpeg must not be detected as heic")
	}
}

func TestValidateAllowList(t *testing.T) {
	t.Parallel()

	err := Validate(FileRef{MimeType: "application/pdf", FileSize: 10}, testSettings())
	if !errors.Is(err, ErrInvalidFileType) {
		t.Fatalf("expected ErrInvalidFileType, got %v", err)
	}
	if err := Validate(FileRef{MimeType: "image/png", FileSize: 10}, testSettings()); err != nil {
		t.Fatalf("allowed type rejected: %v", err)
	}
}

func TestValidateSizeCap(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	over := settings.MaxFileSizeBytes() + 1
	err := Validate(FileRef{MimeType: "image/png", FileSize: over}, settings)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	if err := Validate(FileRef{MimeType: "image/png", FileSize: settings.MaxFileSizeBytes()}, settings); err != nil {
		t.Fatalf("file at the cap rejected: %v", err)
	}
}

func TestValidateTypeCheckedBeforeSize(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	err := Validate(FileRef{MimeType: "application/pdf", FileSize: settings.MaxFileSizeBytes() + 1}, settings)
	if !errors.Is(err, ErrInvalidFileType) {
		t.Fatalf("type check must run first, got %v", err)
	}
}
