package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageData 页面模板数据
type PageData struct {
	Title           string
	Prompt          string
	ModerationLevel string
	Levels          []string
	Model           string
	Response        template.HTML
	Blocked         bool
	Error           string
	RequestID       string
}

// Renderer Markdown + 页面渲染器，可并发使用
type Renderer struct {
	md   goldmark.Markdown
	page *template.Template
}

// New 创建渲染器并解析内嵌模板
func New() (*Renderer, error) {
	page, err := template.ParseFS(templateFS, "templates/page.html")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
	)

	return &Renderer{md: md, page: page}, nil
}

// Markdown 将 Markdown 文本转换为安全的 HTML 片段
func (r *Renderer) Markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	// goldmark 默认不输出原始 HTML，结果可直接作为可信片段
	return template.HTML(buf.String()), nil
}

// Page 渲染完整页面
func (r *Renderer) Page(w io.Writer, data PageData) error {
	if data.Title == "" {
		data.Title = "PromptGate"
	}
	var buf bytes.Buffer
	if err := r.page.Execute(&buf, data); err != nil {
		return fmt.Errorf("execute page template: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}
