// Package sanitize makes untrusted text safe to print on an operator's terminal.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// ansiEscapeRegex matches CSI and OSC escape sequences
	ansiEscapeRegex = regexp.MustCompile(`\x1b(\[[0-?]*[ -/]*[@-~]|\][^\x07\x1b]*(\x07|\x1b\\)?)`)
)

// Terminal strips escape sequences and control characters so model output
// cannot move the cursor, recolour the screen or rewrite the title bar.
// Newlines and tabs are kept.
func Terminal(s string) string {
	result := ansiEscapeRegex.ReplaceAllString(s, "")
	result = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, result)
	return strings.TrimSpace(result)
}
