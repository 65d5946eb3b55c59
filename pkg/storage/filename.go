package storage

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTitleLength is the maximum length of a sanitized title, in characters
const MaxTitleLength = 100

// MaxTitleBytes bounds the encoded title so that the longest name a Manager
// derives from it ("<title>_NNNN.<ext>.part") stays under the 255-byte
// NAME_MAX of common filesystems.
const MaxTitleBytes = 200

const illegalChars = `\/*?:"<>|`

// SanitizeTitle maps untrusted caption text to a filesystem-safe base name.
// Illegal characters and control characters are removed, each run of line
// breaks becomes a single space, the result is cut to MaxTitleLength
// characters and then to MaxTitleBytes bytes on a character boundary, and
// trimmed. An empty result falls back to "video_<id>".
// SanitizeTitle(SanitizeTitle(s, id), id) == SanitizeTitle(s, id).
func SanitizeTitle(raw, fallbackID string) string {
	if title := clean(raw); title != "" {
		return title
	}
	if id := clean(fallbackID); id != "" {
		return clean("video_" + id)
	}
	return "video"
}

func clean(raw string) string {
	raw = strings.ToValidUTF8(raw, "")

	var b strings.Builder
	b.Grow(len(raw))
	inBreak := false
	for _, r := range raw {
		if r == '\r' || r == '\n' {
			if !inBreak {
				b.WriteRune(' ')
				inBreak = true
			}
			continue
		}
		if strings.ContainsRune(illegalChars, r) || unicode.IsControl(r) {
			continue
		}
		inBreak = false
		b.WriteRune(r)
	}

	return strings.TrimSpace(truncateBytes(truncateRunes(b.String(), MaxTitleLength), MaxTitleBytes))
}

// truncateRunes cuts s to at most n characters without splitting a rune
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// truncateBytes cuts s to at most n bytes without splitting a rune
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	end := 0
	for i, r := range s {
		if i+utf8.RuneLen(r) > n {
			break
		}
		end = i + utf8.RuneLen(r)
	}
	return s[:end]
}
