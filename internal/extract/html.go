package extract

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// ExtractHTML parses an HTML document and returns its title and visible text.
// Script, style and noscript subtrees are skipped and whitespace is collapsed
// so the result chunks cleanly.
func ExtractHTML(content []byte) (title, text string, err error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return "", "", fmt.Errorf("parse HTML: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		case html.TextNode:
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				sb.WriteString(trimmed)
				sb.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return title, strings.Join(strings.Fields(sb.String()), " "), nil
}
