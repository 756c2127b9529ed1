package security

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	htmlTagsRegex      = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex    = regexp.MustCompile(`\s+`)
	unsafeFilenameChar = regexp.MustCompile(`[^a-zA-Z0-9._\-]`)
)

// SanitizeString trims input and drops null bytes and control characters,
// keeping newlines and tabs.
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	return removeControlCharacters(input)
}

// StripHTMLTags removes all HTML tags from input
func StripHTMLTags(input string) string {
	return htmlTagsRegex.ReplaceAllString(input, "")
}

// SanitizeText prepares free text such as route names for storage: tags and
// control characters are removed, whitespace collapsed, and the result cut to
// maxRunes characters without splitting a multi-byte rune.
func SanitizeText(input string, maxRunes int) string {
	input = StripHTMLTags(input)
	input = SanitizeString(input)
	input = strings.TrimSpace(whitespaceRegex.ReplaceAllString(input, " "))
	return TruncateRunes(input, maxRunes)
}

// SanitizeFilename makes an uploaded filename safe for use in an object key
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "/", "")
	filename = strings.ReplaceAll(filename, "\\", "")
	filename = strings.ReplaceAll(filename, "..", "")
	filename = unsafeFilenameChar.ReplaceAllString(filename, "_")

	if len(filename) > 255 {
		filename = filename[:255]
	}
	if filename == "" {
		return "upload"
	}
	return filename
}

// TruncateRunes cuts input to at most maxRunes characters. A non-positive
// limit leaves the input untouched.
func TruncateRunes(input string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(input) <= maxRunes {
		return input
	}
	runes := []rune(input)
	return string(runes[:maxRunes])
}

func removeControlCharacters(input string) string {
	var result strings.Builder
	for _, r := range input {
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
