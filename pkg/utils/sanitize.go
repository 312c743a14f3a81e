package utils

import (
	"regexp"
	"strings"
)

var (
	unsafePathChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
	underscoreRuns  = regexp.MustCompile(`_+`)
)

const maxPathComponentLength = 100

// SanitizeFilename turns an arbitrary name (e.g. a source key) into a single safe path component
func SanitizeFilename(name string) string {
	out := unsafePathChars.ReplaceAllString(name, "_")
	out = underscoreRuns.ReplaceAllString(out, "_")
	out = strings.Trim(out, "_ ")
	if len(out) > maxPathComponentLength {
		out = strings.Trim(out[:maxPathComponentLength], "_ ")
	}
	if out == "" {
		return "untitled"
	}
	return out
}
