package sanitize

import (
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeEmailChars = regexp.MustCompile(`[<>;\\]`)

// Email normalizes and sanitizes an email address
func Email(email string) string {
	email = strings.TrimSpace(email)
	email = strings.ToLower(email)
	return unsafeEmailChars.ReplaceAllString(email, "")
}

// FileName strips any path components from an uploaded file name so it
// cannot escape the storage prefix
func FileName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

// MessagePreview truncates message content for email notifications.
// Truncation counts runes so a multi-byte character is never split.
func MessagePreview(content string, max int) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "..."
}
