package security

import (
	"strings"

	"golang.org/x/net/html"
)

// textEscaper re-escapes markup delimiters that survive in character data,
// so decoded entities such as "&lt;b&gt;" never turn back into tags.
var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Sanitize strips every tag, attribute, comment and doctype from text and keeps
// only its character data. Whitespace runs are collapsed into a single space and
// the result is trimmed. Malformed markup is dropped rather than reported.
//
// Sanitize is idempotent: Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(text string) string {
	if text == "" {
		return ""
	}

	z := html.NewTokenizer(strings.NewReader(text))

	var b strings.Builder
	b.Grow(len(text))

	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF, or an unterminated tag at the end of input
			return CollapseWhitespace(b.String())
		case html.TextToken:
			b.WriteString(textEscaper.Replace(string(z.Text())))
		}
	}
}

// CollapseWhitespace replaces every whitespace run with one ASCII space and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
