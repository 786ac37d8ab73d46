// Package htmlsanitize strips markup from user-submitted text (complaints,
// feedback comments, profile and hostel fields) before it is stored.
// It uses bluemonday's strict policy; the API only ever stores plain text.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text removes every HTML element from s, keeps the text content, and
// trims surrounding whitespace. Entities are decoded so "Tom &amp; Jerry"
// is stored as "Tom & Jerry".
func Text(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(getPolicy().Sanitize(s)))
}

// Strings applies Text to every string value in m, in place, and returns m.
// Non-string values are left alone.
func Strings(m map[string]any) map[string]any {
	for k, v := range m {
		if s, ok := v.(string); ok {
			m[k] = Text(s)
		}
	}
	return m
}

// IsPlainText checks if content appears to be plain text (no HTML tags).
func IsPlainText(content string) bool {
	if content == "" {
		return true
	}
	return !strings.Contains(content, "<") || !strings.Contains(content, ">")
}
