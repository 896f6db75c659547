package api

import (
	"regexp"
	"strings"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// sanitizeMessage strips HTML tags and collapses whitespace before the
// message reaches the model.
func sanitizeMessage(message string) string {
	message = htmlTagPattern.ReplaceAllString(message, "")
	return strings.Join(strings.Fields(message), " ")
}
