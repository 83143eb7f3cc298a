package telegram

import (
	"log/slog"
	"strings"
)

// Result format names accepted in user preferences.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
	FormatPlain    = "plain"
)

// canonicalFormats fixes the order result messages are sent in regardless of
// the order the user listed formats.
var canonicalFormats = []string{FormatHTML, FormatMarkdown, FormatPlain}

// ValidFormat reports whether name is a recognized result format.
func ValidFormat(name string) bool {
	switch name {
	case FormatHTML, FormatMarkdown, FormatPlain:
		return true
	}
	return false
}

// NormalizeFormats drops unknown names, deduplicates, and returns the
// remaining formats in canonical order.
func NormalizeFormats(formats []string) []string {
	want := make(map[string]bool, len(formats))
	for _, f := range formats {
		if ValidFormat(f) {
			want[f] = true
		}
	}
	out := make([]string, 0, len(want))
	for _, f := range canonicalFormats {
		if want[f] {
			out = append(out, f)
		}
	}
	return out
}

var markdownV2Escaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
)

// EscapeMarkdownV2 escapes every character that MarkdownV2 treats as
// markup. Unescaped specials make Telegram reject the whole message.
func EscapeMarkdownV2(text string) string {
	return markdownV2Escaper.Replace(text)
}

// SendUploadResult sends the uploaded file's URL once per requested format,
// in canonical format order. All formats are attempted even if one send
// fails; the first error is returned.
func (c *Client) SendUploadResult(token string, chatID int64, fileURL, fileName string, formats []string) error {
	normalized := NormalizeFormats(formats)
	if len(normalized) == 0 {
		normalized = []string{FormatHTML}
	}
	var firstErr error
	for _, format := range normalized {
		var err error
		switch format {
		case FormatMarkdown:
			alt := fileName
			if alt == "" {
				alt = "image"
			}
			text := "![" + EscapeMarkdownV2(alt) + "](" + EscapeMarkdownV2(fileURL) + ")"
			err = c.SendMarkdownV2(token, chatID, text)
		default:
			// html and plain both deliver the bare URL so the client
			// renders its own preview.
			err = c.SendPlain(token, chatID, fileURL)
		}
		if err != nil && firstErr == nil {
			firstErr = err
			c.logger.Warn("send upload result failed",
				slog.String("format", format), slog.Any("error", err))
		}
	}
	return firstErr
}
