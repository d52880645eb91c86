package music

import (
	"crypto/rand"
	"strings"
	"unicode"

	"github.com/oklog/ulid/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSanitizedNameLen = 200
	fallbackName        = "audio"
)

// NewStorageKey derives a blob key from the uploader's filename. The prefix
// is a ULID: a millisecond timestamp followed by 80 bits read from
// crypto/rand, so concurrent uploads of identically named files never
// collide.
func NewStorageKey(originalName string) string {
	prefix := strings.ToLower(ulid.MustNew(ulid.Now(), rand.Reader).String())
	return prefix + "-" + SanitizeFilename(originalName)
}

// SanitizeFilename strips diacritics and replaces every character outside
// [A-Za-z0-9.-] with '-'.
func SanitizeFilename(name string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn))), name)
	if err != nil {
		stripped = name
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		if isKeySafe(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}

	out := b.String()
	if out == "" {
		return fallbackName
	}
	// Keep the tail so the extension survives truncation.
	if len(out) > maxSanitizedNameLen {
		out = out[len(out)-maxSanitizedNameLen:]
	}
	return out
}

func isKeySafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.' || r == '-':
		return true
	}
	return false
}
