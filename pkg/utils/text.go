// Package utils provides small shared helpers for text, vector math, and logging.
package utils

// Truncate caps s at maxLen bytes and appends "..." when anything was cut.
// A maxLen of 0 or below disables truncation.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
