package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "plain text", input: "Alice Smith", expected: "Alice Smith"},
		{name: "script keeps text content", input: "<script>x</script>Hello", expected: "xHello"},
		{name: "tags removed without separator", input: "<b> </b>A<b></b>", expected: "A"},
		{name: "attributes removed", input: `<a href="javascript:alert(1)" onclick="x()">link</a>`, expected: "link"},
		{name: "comment removed", input: "a<!-- hidden -->b", expected: "ab"},
		{name: "whitespace collapsed", input: "  Alice \n\t  Smith  ", expected: "Alice Smith"},
		{name: "nbsp entity collapsed", input: "Alice&nbsp;&nbsp;Smith", expected: "Alice Smith"},
		{name: "unterminated tag dropped", input: "hello <b", expected: "hello"},
		{name: "stray delimiters escaped", input: "a < b > c", expected: "a &lt; b &gt; c"},
		{name: "encoded markup stays inert", input: "&lt;script&gt;x", expected: "&lt;script&gt;x"},
		{name: "ampersand escaped", input: "Tom & Jerry", expected: "Tom &amp; Jerry"},
		{name: "apostrophe preserved", input: "O'Brien", expected: "O'Brien"},
		{name: "nested markup", input: "<div><p>one</p><p>two</p></div>", expected: "onetwo"},
		{name: "unicode kept", input: "<i>Zoë</i> Ångström", expected: "Zoë Ångström"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"<script>alert('x')</script>",
		"<script>&lt;b&gt;</script>",
		"<plaintext><b>bold",
		"a<b",
		"<<>>",
		"&amp;lt;",
		"&#10;line&#9;tab",
		"<p title='>'>x</p>",
		"</ b>text<!",
		"<textarea><i>x</i></textarea>",
		"Jane   Doe ",
	}

	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
	}
}

func TestSanitize_NoMarkupOrWhitespaceRuns(t *testing.T) {
	inputs := []string{
		"<b>bold</b>   <i>italic</i>",
		"<img src=x onerror=alert(1)>",
		"<svg><script>x</script></svg>\n\n<p>para</p>",
		"1 < 2 && 3 > 2",
		"<<script>script>",
	}

	for _, in := range inputs {
		out := Sanitize(in)
		assert.NotContains(t, out, "<", "input %q", in)
		assert.NotContains(t, out, ">", "input %q", in)
		assert.False(t, strings.Contains(out, "  "), "double space in %q", out)
		assert.Equal(t, strings.TrimSpace(out), out)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", CollapseWhitespace(" a\t\tb\n\r c "))
	assert.Equal(t, "", CollapseWhitespace(" \n "))
}
