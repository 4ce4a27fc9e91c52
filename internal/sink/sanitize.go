// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const maxNameBytes = 255

var (
	illegalChars  = regexp.MustCompile(`[/?<>\\:*|"]`)
	controlChars  = regexp.MustCompile(`[\x00-\x1f\x80-\x9f]`)
	reservedNames = regexp.MustCompile(`^\.+$`)
	windowsNames  = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[0-9]|lpt[0-9])(\..*)?$`)
	trailingChars = regexp.MustCompile(`[. ]+$`)
)

// Sanitize turns name into a safe file name: characters illegal on common
// filesystems are removed, reserved names become empty, and the result is
// NFC-normalized and cut to 255 bytes on a rune boundary.
func Sanitize(name string) string {
	s := norm.NFC.String(name)
	s = illegalChars.ReplaceAllString(s, "")
	s = controlChars.ReplaceAllString(s, "")
	s = reservedNames.ReplaceAllString(s, "")
	s = windowsNames.ReplaceAllString(s, "")
	s = trailingChars.ReplaceAllString(s, "")
	return truncate(s, maxNameBytes)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return strings.TrimRight(s, ". ")
}
