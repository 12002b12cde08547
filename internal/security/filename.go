// Package security holds helpers for handling untrusted names.
package security

import "strings"

// maxFilenameLen bounds names built by SanitizeFilename.
const maxFilenameLen = 128

// SanitizeFilename makes a file name from an arbitrary identifier such as
// an analysis or bin name. Runs of characters other than ASCII letters,
// digits, dot, underscore and dash become one underscore; leading and
// trailing dots and underscores are dropped. An empty result is "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range s {
		ok := r == '.' || r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			pending = true
			continue
		}
		if pending && b.Len() > 0 {
			b.WriteByte('_')
		}
		pending = false
		b.WriteRune(r)
		if b.Len() >= maxFilenameLen {
			break
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
