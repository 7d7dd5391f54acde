package utils

import (
	"strings"

	"golang.org/x/text/cases"
)

// FoldName returns the Unicode case-folded form of a name, used for
// case-insensitive comparisons.
func FoldName(name string) string {
	return cases.Fold().String(name)
}

// HasFoldedPrefix reports whether name starts with prefix, ignoring case.
func HasFoldedPrefix(name, prefix string) bool {
	return strings.HasPrefix(FoldName(name), FoldName(prefix))
}

// ContainsFolded reports whether name contains sub, ignoring case.
func ContainsFolded(name, sub string) bool {
	return strings.Contains(FoldName(name), FoldName(sub))
}
