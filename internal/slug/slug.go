// Package slug はタイトルやカテゴリ名からURLに使える識別子を生成する。
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Make は文字列を小文字・ASCII・ハイフン区切りのスラッグに変換する。
// アクセント記号は除去し（"Café" → "cafe"）、英数字以外の記号は捨てる。
// 空白・ハイフン・アンダースコアの連続は1つのハイフンにまとめる。
// 変換後に英数字が残らない場合は空文字を返す。
func Make(s string) string {
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s,
	)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(stripped) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_':
			pendingHyphen = true
		}
	}
	return b.String()
}
