package extract

import (
	"strings"
	"unicode/utf8"
)

func extractPlain(content []byte) (string, error) {
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return text, nil
}
