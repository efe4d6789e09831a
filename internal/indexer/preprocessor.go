package indexer

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe  = regexp.MustCompile(`[\s\v\p{Z}]+`)
	disallowedRe  = regexp.MustCompile(`[^\p{L}\p{N}_\s\v\p{Z}.,;:!?()\-]`)
	terminatorsRe = regexp.MustCompile(`([.!?])\s*`)
)

// CleanText normalizes article text before chunking: whitespace (Unicode spaces such as
// U+00A0 included) is collapsed, characters other than letters, digits, and basic
// punctuation are removed, and every sentence terminator is followed by exactly one space.
func CleanText(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = disallowedRe.ReplaceAllString(text, "")
	text = terminatorsRe.ReplaceAllString(text, "$1 ")
	return strings.TrimSpace(text)
}
