package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_Markdown(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		contains []string
		excludes []string
	}{
		{
			name:     "emphasis",
			input:    "Hello **world**",
			contains: []string{"<strong>world</strong>"},
		},
		{
			name:     "fenced code",
			input:    "```go\nfmt.Println(1)\n```",
			contains: []string{"<pre><code", "fmt.Println(1)"},
		},
		{
			name:     "gfm table",
			input:    "| a | b |\n|---|---|\n| 1 | 2 |",
			contains: []string{"<table>", "<td>1</td>"},
		},
		{
			name:     "raw html is dropped",
			input:    "<script>alert(1)</script>\n\ntext",
			contains: []string{"text"},
			excludes: []string{"<script>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Markdown(tt.input)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, string(out), s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, string(out), s)
			}
		})
	}
}

func TestRenderer_Page(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	body, err := r.Markdown("*hi*")
	require.NoError(t, err)

	var buf bytes.Buffer
	err = r.Page(&buf, PageData{
		Prompt:          `say "hi" <b>`,
		ModerationLevel: "strict",
		Levels:          []string{"strict", "moderate"},
		Model:           "gemini-test",
		Response:        body,
		RequestID:       "req-1",
	})
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "<title>PromptGate</title>")
	assert.Contains(t, html, "<em>hi</em>")
	assert.Contains(t, html, `<option value="strict" selected>strict</option>`)
	assert.Contains(t, html, "say &#34;hi&#34; &lt;b&gt;")
	assert.Contains(t, html, "req-1")
	assert.NotContains(t, html, "class=\"blocked\"")
}

func TestRenderer_PageStates(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	t.Run("empty form", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, r.Page(&buf, PageData{Levels: []string{"moderate"}, ModerationLevel: "moderate"}))
		assert.Contains(t, buf.String(), "<form")
		assert.False(t, strings.Contains(buf.String(), `class="response`))
	})

	t.Run("error", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, r.Page(&buf, PageData{Error: "upstream <failure>"}))
		assert.Contains(t, buf.String(), "Error: upstream &lt;failure&gt;")
	})

	t.Run("blocked", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, r.Page(&buf, PageData{Response: "<p>refused</p>", Blocked: true}))
		assert.Contains(t, buf.String(), `class="blocked"`)
	})
}
