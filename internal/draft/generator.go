// Package draft はプロンプトからブログ記事の下書きを生成する。
package draft

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/blogman/internal/model"
)

// MinPromptLength はプロンプトの最小文字数（前後の空白を除く）。
const MinPromptLength = 10

const instruction = "Create a blog article based on this prompt. " +
	"Provide JSON with keys: title, content (markdown), summary (1-2 sentences), " +
	"metaDescription (max 155 chars), tags (array of 5-8), category."

// Completer はテキスト生成サービスのインターフェース。
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Draft は生成された下書き。
// モデルの出力がJSONとして解釈できない場合はRawのみが設定される。
type Draft struct {
	Title           string   `json:"title,omitempty"`
	Content         string   `json:"content,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	MetaDescription string   `json:"metaDescription,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Category        string   `json:"category,omitempty"`
	Raw             string   `json:"raw,omitempty"`
}

// Generator は下書きを生成する。completerがnilの場合は常にUnavailableErrorを返す。
type Generator struct {
	completer Completer
}

// NewGenerator はGeneratorを生成する。
func NewGenerator(completer Completer) *Generator {
	return &Generator{completer: completer}
}

// Generate はプロンプトから下書きを生成する。
func (g *Generator) Generate(ctx context.Context, prompt string) (*Draft, error) {
	prompt = strings.TrimSpace(prompt)
	if utf8.RuneCountInString(prompt) < MinPromptLength {
		return nil, model.NewValidationError("プロンプトは10文字以上で入力してください。")
	}
	if g.completer == nil {
		return nil, model.NewDraftUnavailableError(nil)
	}

	text, err := g.completer.Complete(ctx, instruction+"\n\n"+prompt)
	if err != nil {
		return nil, model.NewDraftUnavailableError(err)
	}
	return parseDraft(text), nil
}

// parseDraft はモデルの出力を解釈する。コードフェンスは取り除く。
func parseDraft(text string) *Draft {
	cleaned := stripFence(text)

	var d Draft
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		return &Draft{Raw: text}
	}
	d.Raw = ""
	return &d
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
