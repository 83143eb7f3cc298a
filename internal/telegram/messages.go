package telegram

import (
	"fmt"
	"strings"
	"time"
)

// Error kinds understood by ErrorMessage. Anything else renders as a
// generic "❌ Error: <kind>" line.
const (
	ErrKindUnauthorized    = "unauthorized"
	ErrKindRateLimit       = "rate_limit"
	ErrKindFileTooLarge    = "file_too_large"
	ErrKindInvalidFileType = "invalid_file_type"
	ErrKindUploadFailed    = "upload_failed"
	ErrKindStorageFull     = "storage_full"
)

var errorMessages = map[string]string{
	ErrKindUnauthorized:    "❌ Authentication failed. Please contact admin.",
	ErrKindRateLimit:       "⏱️ You are sending too many messages. Please wait a moment.",
	ErrKindFileTooLarge:    "❌ File too large. Maximum size exceeded.",
	ErrKindInvalidFileType: "❌ Invalid file type. Only images are allowed.",
	ErrKindUploadFailed:    "❌ Upload failed. Please try again.",
	ErrKindStorageFull:     "❌ Storage quota exceeded. Please contact admin.",
}

// ErrorMessage returns the canned reply for an error kind.
func ErrorMessage(kind string) string {
	if msg, ok := errorMessages[kind]; ok {
		return msg
	}
	return "❌ Error: " + kind
}

// WelcomeMessage greets a chat on /start, before the help text follows.
const WelcomeMessage = "👋 Welcome! Send me an image and I'll upload it for you.\n\n" +
	"Use /help to see available commands."

// HelpMessage is sent in HTML parse mode.
const HelpMessage = `🤖 <b>Image Bed Bot Help</b>

<b>Commands:</b>
/start - Start using the bot
/help - Show this help message
/settings - Configure your preferences

<b>Usage:</b>
Just send me an image and I'll upload it for you!

<b>Available output formats:</b>
• HTML - url
• Markdown - ![image](url)

<b>Settings:</b>
Use /settings to choose your preferred formats.`

// UnknownCommandMessage answers slash commands the router does not know.
const UnknownCommandMessage = "❌ Unknown command. Use /help to see available commands."

// PreferencesDisabledMessage answers mutation attempts when the
// administrator has turned per-chat preferences off.
const PreferencesDisabledMessage = "❌ Custom preferences are disabled by the administrator."

var formatLabels = map[string]string{
	FormatHTML:     "✅ HTML",
	FormatMarkdown: "✅ Markdown",
	FormatPlain:    "✅ Plain text",
}

// SettingsMessage renders the current preferences in HTML parse mode.
func SettingsMessage(formats []string, uploadChannel string) string {
	lines := make([]string, 0, len(formats))
	for _, f := range formats {
		label, ok := formatLabels[f]
		if !ok {
			label = f
		}
		lines = append(lines, label)
	}
	return fmt.Sprintf(`⚙️ <b>Your Settings</b>

<b>Output formats:</b>
%s

<b>Upload channel:</b>
%s

<b>To change settings:</b>
/settings [formats] [channel]

Example:
/settings html,markdown telegram
/settings plain s3`, strings.Join(lines, "\n"), uploadChannel)
}

// InvalidChannelMessage lists the accepted upload channels.
func InvalidChannelMessage(channel string, valid []string) string {
	return fmt.Sprintf("❌ Invalid channel: %s\nValid channels: %s",
		channel, strings.Join(valid, ", "))
}

// InvalidFormatsMessage lists the rejected format tokens and the accepted
// set.
func InvalidFormatsMessage(invalid []string) string {
	return fmt.Sprintf("❌ Invalid formats: %s\nValid formats: %s",
		strings.Join(invalid, ", "), strings.Join(canonicalFormats, ", "))
}

// EmptyFormatsMessage rejects a format list that resolved to nothing.
func EmptyFormatsMessage() string {
	return "❌ No formats specified.\nValid formats: " + strings.Join(canonicalFormats, ", ")
}

// ChannelUpdatedMessage confirms an upload-channel change.
func ChannelUpdatedMessage(channel string) string {
	return "✅ Upload channel set to: " + channel
}

// FormatsUpdatedMessage confirms an output-format change.
func FormatsUpdatedMessage(formats []string) string {
	return "✅ Output formats set to: " + strings.Join(formats, ", ")
}

// RateLimitedMessage tells the chat when the next upload slot opens.
func RateLimitedMessage(resetTime time.Time) string {
	return fmt.Sprintf("⏱️ Rate limit exceeded. Try again after %s.",
		resetTime.Format("15:04:05"))
}

// GenericErrorMessage wraps an unanticipated pipeline failure.
func GenericErrorMessage(detail string) string {
	return "❌ Error: " + detail
}

// CallbackReply echoes a callback query's payload back to the chat.
func CallbackReply(data string) string {
	return "You clicked: " + data
}
