package tools

import (
	"regexp"
	"strings"

	"github.com/aquilax/truncate"
	"github.com/google/go-containerregistry/pkg/name"
)

var whitespace = regexp.MustCompile(`\s+`)

// Ellipsis collapses whitespace and shortens s to at most n characters for tabular output
func Ellipsis(s string, n int) string {
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	if n <= 0 {
		return s
	}
	return truncate.Truncate(s, n, "...", truncate.PositionEnd)
}

// NormalizeReference returns the fully qualified form of an image reference,
// references that cannot be parsed are returned unchanged
func NormalizeReference(ref string) string {
	r, err := name.ParseReference(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return r.Name()
}
