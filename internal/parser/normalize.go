// Package parser turns semi-structured text (statement blobs, CSV exports,
// device logs) into domain records. Every parser here is best-effort: bad
// fields and rows are reported alongside the partial result instead of
// aborting the input.
package parser

import (
	"strings"
	"unicode"
)

// Normalize splits raw text into cleaned lines. CRLF and bare CR become LF,
// tabs and other unicode spaces (NBSP included) become spaces, inner whitespace is collapsed,
// and blank lines are dropped.
func Normalize(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if l := NormalizeLine(line); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// NormalizeLine collapses whitespace in a single line and trims it.
func NormalizeLine(line string) string {
	line = strings.Map(func(r rune) rune {
		switch {
		case r == '\ufeff':
			return -1
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, line)
	return strings.Join(strings.Fields(line), " ")
}
