// Package security はアプリケーションのセキュリティ機能を提供する。
//
// RenderedHTMLPolicy は投稿本文をMarkdownから変換したHTMLをサニタイズする。
// 本文は投稿者が自由に記述できるため、変換後のHTMLにも生のタグが混入しうる。
// bluemondayの許可リストで安全なタグと属性のみを通過させる。
package security

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// HTMLSanitizer はHTMLをサニタイズするインターフェース。
type HTMLSanitizer interface {
	// Sanitize は許可リストにないタグ・属性を除去したHTMLを返す。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(rawHTML string) string
}

var codeLanguageClass = regexp.MustCompile(`^language-[\w+-]+$`)

// renderedHTMLPolicy はHTMLSanitizerの実装。
type renderedHTMLPolicy struct {
	policy *bluemonday.Policy
}

// NewRenderedHTMLPolicy は投稿本文向けのHTMLSanitizerを生成する。
// ポリシーの内容:
//   - 見出し、段落、リスト、引用、コード、表、取り消し線などMarkdown由来の要素を許可
//   - script, iframe, style および全てのon*イベント属性は除去
//   - URLは http/https/mailto と相対URLのみ許可（javascript: や data: は除去）
//   - 外部リンクには target="_blank" と rel="noreferrer" を付与
//   - code の class は language-* のみ許可（シンタックスハイライト用）
func NewRenderedHTMLPolicy() HTMLSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "hr", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "del", "sup", "sub",
		"table", "thead", "tbody", "tr",
	)
	p.AllowAttrs("align").Matching(regexp.MustCompile(`^(left|center|right)$`)).OnElements("th", "td")
	p.AllowElements("th", "td")
	p.AllowAttrs("class").Matching(codeLanguageClass).OnElements("code")
	p.AllowAttrs("id").Matching(bluemonday.SpaceSeparatedTokens).OnElements("h1", "h2", "h3", "h4", "h5", "h6")

	// タスクリスト
	p.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
	p.AllowAttrs("checked", "disabled").OnElements("input")

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnFullyQualifiedLinks(true)

	p.AllowAttrs("src", "alt", "title").OnElements("img")
	p.AddSpaceWhenStrippingTag(true)

	return &renderedHTMLPolicy{policy: p}
}

// Sanitize はHTMLをサニタイズする。
func (s *renderedHTMLPolicy) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
