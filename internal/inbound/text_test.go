package inbound

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractEmail(t *testing.T) {
	assert.Equal(t, "jane@example.com", ExtractEmail("Jane Doe <jane@example.com>"))
	assert.Equal(t, "jane@example.com", ExtractEmail("jane@example.com"))
	assert.Equal(t, "jane@example.com", ExtractEmail("  jane@example.com \n"))
	assert.Equal(t, "jane@example.com", ExtractEmail(`"Doe, Jane" < jane@example.com >`))
	assert.Equal(t, "", ExtractEmail(""))
}

func TestBareAddress(t *testing.T) {
	assert.Equal(t, "a@x.com", BareAddress("a@x.com, b@y.com"))
	assert.Equal(t, "a@x.com", BareAddress(`"Doe, A" <a@x.com>, b@y.com`))
	assert.Equal(t, "a@x.com", BareAddress(" a@x.com "))
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"line breaks", "one<br>two<BR/>three<br />four", "one\ntwo\nthree\nfour"},
		{"paragraphs", "<p>one</p><p>two</p>", "one\ntwo"},
		{"tags removed", `<div class="x"><a href="https://e.com">link</a></div>`, "link"},
		{"entities", "a&nbsp;b &amp; c &lt;d&gt;", "a b & c <d>"},
		{"ampersand decoded before lt and gt", "a &amp;lt;b&amp;gt; c", "a <b> c"},
		{"nbsp decoded before ampersand", "&amp;nbsp;", "&nbsp;"},
		{"encoded tags survive stripping", "&lt;b&gt;bold&lt;/b&gt;", "<b>bold</b>"},
		{"trimmed", "  <p>  padded  </p>  ", "padded"},
		{"other entities untouched", "&quot;x&quot;", "&quot;x&quot;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTMLToText(tt.in))
		})
	}
}
