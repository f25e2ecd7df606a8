// Package sanitize cleans user supplied free text before it is stored or
// copied into notification payloads.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text strips all markup and returns plain text with surrounding whitespace removed.
func Text(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(value)))
}

// OptionalText is Text for nullable columns; blank input yields nil.
func OptionalText(value *string) *string {
	if value == nil {
		return nil
	}
	cleaned := Text(*value)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
