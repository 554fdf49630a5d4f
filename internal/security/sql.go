// Package security provides SQL safety utilities for the universal data core
package security

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierPattern restricts JSON path segments to the charset that is
// safe to interpolate into query text: lowercase letters, digits and
// underscores, starting with a letter or underscore.
var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidatePathSegment checks a key used inside a JSON path expression.
// Segments are interpolated into the query text, so they are held to the
// identifier charset; SQL reserved words are fine as document keys.
func ValidatePathSegment(segment string) error {
	if segment == "" {
		return fmt.Errorf("path segment cannot be empty")
	}
	if len(segment) > 63 {
		return fmt.Errorf("path segment too long (max 63 characters)")
	}
	if !identifierPattern.MatchString(segment) {
		return fmt.Errorf("invalid path segment %q: must contain only lowercase letters, numbers, and underscores, starting with a letter or underscore", segment)
	}
	return nil
}

// EscapeLikePattern escapes special characters in LIKE patterns
func EscapeLikePattern(pattern string) string {
	pattern = strings.ReplaceAll(pattern, `\`, `\\`)
	pattern = strings.ReplaceAll(pattern, `%`, `\%`)
	pattern = strings.ReplaceAll(pattern, `_`, `\_`)
	return pattern
}
