// Package render は投稿本文(Markdown)のHTML変換と、その派生物(ETag・抜粋)を提供する。
package render

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"

	"github.com/hitoshi/blogman/internal/security"
)

// Rendered は変換済みの本文。
type Rendered struct {
	HTML string
	ETag string
}

// Renderer はMarkdownをサニタイズ済みHTMLに変換する。
type Renderer struct {
	md        goldmark.Markdown
	sanitizer security.HTMLSanitizer
}

// NewRenderer はRendererを生成する。
// 生のHTMLはgoldmarkでは通過させ、変換後にsanitizerで除去する。
func NewRenderer(sanitizer security.HTMLSanitizer) *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Linkify,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			htmlrenderer.WithUnsafe(),
		),
	)
	return &Renderer{md: md, sanitizer: sanitizer}
}

// Render はMarkdownをHTMLに変換し、ETagを付けて返す。
func (r *Renderer) Render(markdown string) (*Rendered, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	out := r.sanitizer.Sanitize(buf.String())
	return &Rendered{HTML: out, ETag: ETag(out)}, nil
}

// ETag はコンテンツのxxhashから引用符付きのETagを生成する。
func ETag(content string) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64String(content))
}

// Excerpt はHTMLからテキストのみを取り出し、最大maxRunes文字に切り詰める。
// 連続する空白は1つにまとめる。切り詰めた場合は末尾に"…"を付ける。
func Excerpt(htmlBody string, maxRunes int) string {
	var sb strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(htmlBody))
	skip := 0

loop:
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			break loop
		case html.StartTagToken:
			if tn, _ := tokenizer.TagName(); isSkipped(string(tn)) {
				skip++
			}
		case html.EndTagToken:
			if tn, _ := tokenizer.TagName(); isSkipped(string(tn)) && skip > 0 {
				skip--
			}
			sb.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				sb.Write(tokenizer.Text())
			}
		}
	}

	text := strings.Join(strings.Fields(sb.String()), " ")
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}

func isSkipped(tag string) bool {
	return tag == "script" || tag == "style"
}
