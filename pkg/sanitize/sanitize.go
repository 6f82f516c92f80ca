// Package sanitize makes user supplied values safe to log.
package sanitize

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MaxLoggedLength is the number of runes kept of a logged user value
const MaxLoggedLength = 256

// UserInputString is a zap field with the control characters of value stripped
// to avoid log injection / CWE-117, overlong values are truncated
func UserInputString(key string, value string) zapcore.Field {
	return zap.String(key, NoControlCharacters(value))
}

// NoControlCharacters removes linebreaks, carrage returns and other control characters
func NoControlCharacters(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	n := 0
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		if n == MaxLoggedLength {
			b.WriteString("...")
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
