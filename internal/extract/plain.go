package extract

import (
	"bufio"
	"slices"
	"strings"
	"unicode/utf8"
)

// extractPlain returns content as string. Invalid UTF-8 sequences are replaced
// with the replacement character.
func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "\uFFFD"), nil
	}
	return string(content), nil
}

// splitHeaders reads leading "Key: value" lines (for example "Title:" and "URL:") until the
// first blank or non-header line and returns them with the remaining body.
// Keys are lower-cased. Only the keys in known are recognized.
func splitHeaders(text string, known ...string) (map[string]string, string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	headers := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), len(text)+1)
	consumed := 0
	for sc.Scan() {
		line := sc.Text()
		key, value, ok := strings.Cut(line, ":")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok || !slices.Contains(known, key) {
			break
		}
		headers[key] = strings.TrimSpace(value)
		consumed += len(line) + 1
	}
	if consumed > len(text) {
		consumed = len(text)
	}
	return headers, strings.TrimSpace(text[consumed:])
}
