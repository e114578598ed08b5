package service

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var textPolicy = bluemonday.StrictPolicy()

// sanitizeText strips markup from grader-supplied feedback, comments and AI notes.
func sanitizeText(input string) string {
	return strings.TrimSpace(textPolicy.Sanitize(input))
}
