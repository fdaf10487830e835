package util

import "strings"

// FoldID normalizes an object identity for storage and lookup.
// Identities are case-insensitive; every store access goes through the
// folded form so "NS/A" and "ns/a" address the same entry.
func FoldID(id string) string {
	return strings.ToLower(id)
}
