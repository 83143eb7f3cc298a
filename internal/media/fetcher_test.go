package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/imgrelay/imgrelay/internal/classify"
)

type fakeFiles struct {
	fileURL   string
	urlErr    error
	data      []byte
	dlErr     error
	downloads int
}

func (f *fakeFiles) FileURL(token, fileID string) (string, error) {
	if f.urlErr != nil {
		return "", f.urlErr
	}
	return f.fileURL, nil
}

func (f *fakeFiles) Download(ctx context.Context, token, fileID string) ([]byte, error) {
	f.downloads++
	if f.dlErr != nil {
		return nil, f.dlErr
	}
	return f.data, nil
}

func heicRef() classify.FileRef {
	return classify.FileRef{
		FileID:   "file-1",
		FileName: "shot.heic",
		FileSize: 1024,
		MimeType: "image/heic",
	}
}

func TestFetchPlainFileSkipsConversion(t *testing.T) {
	t.Parallel()

	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("transform proxy should not be called for non-heic files")
	}))
	defer proxy.Close()

	files := &fakeFiles{data: []byte("png-bytes")}
	fetcher := NewFetcher(files, proxy.URL+"/transform/", nil)

	ref := classify.FileRef{FileID: "file-2", FileName: "a.png", MimeType: "image/png"}
	data, got, err := fetcher.Fetch(context.Background(), "token", ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("unexpected data: %q", data)
	}
	if got != ref {
		t.Fatalf("file ref changed: %+v", got)
	}
	if files.downloads != 1 {
		t.Fatalf("expected one download, got %d", files.downloads)
	}
}

func TestFetchHEICConvertedToJPEG(t *testing.T) {
	t.Parallel()

	var requested string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.String()
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer proxy.Close()

	files := &fakeFiles{fileURL: "https://files.example.test/bot/photos/shot.heic"}
	fetcher := NewFetcher(files, proxy.URL+"/transform/", nil)

	data, got, err := fetcher.Fetch(context.Background(), "token", heicRef())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Fatalf("unexpected data: %q", data)
	}
	if got.FileName != "shot.jpg" {
		t.Errorf("file name not rewritten: %q", got.FileName)
	}
	if got.MimeType != "image/jpeg" {
		t.Errorf("mime type not rewritten: %q", got.MimeType)
	}
	if files.downloads != 0 {
		t.Errorf("raw download should be skipped, got %d", files.downloads)
	}
	if !strings.Contains(requested, "files.example.test") {
		t.Errorf("transform request missing file url: %q", requested)
	}
}

func TestFetchHEICWrongContentTypeFallsBack(t *testing.T) {
	t.Parallel()

	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>not an image</html>"))
	}))
	defer proxy.Close()

	files := &fakeFiles{fileURL: "https://files.example.test/shot.heic", data: []byte("heic-bytes")}
	fetcher := NewFetcher(files, proxy.URL+"/transform/", nil)

	data, got, err := fetcher.Fetch(context.Background(), "token", heicRef())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "heic-bytes" {
		t.Fatalf("expected raw bytes, got %q", data)
	}
	if got.FileName != "shot.heic" || got.MimeType != "image/heic" {
		t.Fatalf("file ref should be unchanged: %+v", got)
	}
}

func TestFetchHEICProxyFailureFallsBack(t *testing.T) {
	t.Parallel()

	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "transform unavailable", http.StatusBadGateway)
	}))
	defer proxy.Close()

	files := &fakeFiles{fileURL: "https://files.example.test/shot.heic", data: []byte("heic-bytes")}
	fetcher := NewFetcher(files, proxy.URL+"/transform/", nil)

	data, _, err := fetcher.Fetch(context.Background(), "token", heicRef())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "heic-bytes" {
		t.Fatalf("expected raw bytes, got %q", data)
	}
	if files.downloads != 1 {
		t.Fatalf("expected one download, got %d", files.downloads)
	}
}

func TestFetchHEICWithoutProxyDownloadsRaw(t *testing.T) {
	t.Parallel()

	files := &fakeFiles{data: []byte("heic-bytes")}
	fetcher := NewFetcher(files, "", nil)

	data, got, err := fetcher.Fetch(context.Background(), "token", heicRef())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "heic-bytes" {
		t.Fatalf("expected raw bytes, got %q", data)
	}
	if got.MimeType != "image/heic" {
		t.Fatalf("file ref should be unchanged: %+v", got)
	}
}

func TestFetchDownloadFailure(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("telegram says no")
	files := &fakeFiles{dlErr: wantErr}
	fetcher := NewFetcher(files, "", nil)

	ref := classify.FileRef{FileID: "file-3", FileName: "a.png", MimeType: "image/png"}
	_, _, err := fetcher.Fetch(context.Background(), "token", ref)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped download error, got %v", err)
	}
}

func TestReplaceExt(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"photo.heic", "photo.jpg"},
		{"archive.tar.heif", "archive.tar.jpg"},
		{"noext", "noext.jpg"},
		{"", "file.jpg"},
	}
	for _, tc := range cases {
		if got := replaceExt(tc.in, "jpg"); got != tc.want {
			t.Errorf("replaceExt(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
