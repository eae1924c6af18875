package summary

import (
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// MaxTextLength caps the text handed to the summarizer. S-1 documents run to
// megabytes; the opening sections carry the business overview.
const MaxTextLength = 100_000

// ExtractText returns the visible text of an HTML document with whitespace
// collapsed, truncated to maxLength bytes on a rune boundary. Plain text
// filings pass through the same path unchanged apart from whitespace.
func ExtractText(r io.Reader, maxLength int) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	extractText(doc, &sb, 0)

	text := strings.Join(strings.Fields(sb.String()), " ")
	if maxLength > 0 && len(text) > maxLength {
		cut := maxLength
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text, nil
}

func extractText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 200 {
		return
	}

	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteString(" ")
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "head":
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb, depth+1)
	}
}
