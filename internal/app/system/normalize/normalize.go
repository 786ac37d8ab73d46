// Package normalize provides helper functions for consistent string normalization
// across the application. Use these helpers instead of scattered strings.ToLower
// and strings.TrimSpace calls to ensure consistent behavior.
package normalize

import "strings"

// Email normalizes an email address by trimming whitespace and converting to lowercase.
// This is the canonical way to normalize emails before storage or comparison.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name normalizes a name by trimming whitespace.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// RoleKey returns the comparison key for a role name. Role names keep their
// case when stored (hostelOwner), so lookups compare on this key.
func RoleKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Flag interprets a multipart form value as a boolean. Only "true" (any case)
// and "on" count as set; browsers send checkbox values either way.
func Flag(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "true" || v == "on"
}

// QueryParam normalizes a query parameter by trimming whitespace.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
