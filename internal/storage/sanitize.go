package storage

import (
	"path"
	"strings"
	"unicode"
)

const maxFolderNameLen = 80

// SanitizeFolderName derives a safe folder name from a file name: path and
// extension stripped, anything outside letters/digits/whitespace/hyphen
// dropped, capped at 80 characters, "unnamed" when nothing survives.
// Applying it twice yields the same result.
func SanitizeFolderName(name string) string {
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))

	var b strings.Builder
	for _, r := range base {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '-' {
			b.WriteRune(r)
		}
	}

	out := b.String()
	if runes := []rune(out); len(runes) > maxFolderNameLen {
		out = string(runes[:maxFolderNameLen])
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "unnamed"
	}
	return out
}
