package draft

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// DefaultModel は既定で利用するGeminiモデル名。
const DefaultModel = "gemini-2.5-flash"

const systemInstruction = "You are an expert blog writer. Write helpful, clear, SEO-friendly content."

// ErrEmptyResponse はモデルが候補を返さなかった場合のエラー。
var ErrEmptyResponse = errors.New("gemini returned no candidates")

// GeminiConfig はGeminiCompleterの設定。
type GeminiConfig struct {
	APIKey            string
	Model             string
	RequestsPerMinute int
}

// GeminiCompleter はGemini APIで文章を生成するCompleter。
// 外部APIの呼び出し頻度はRequestsPerMinuteで制限する。
type GeminiCompleter struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
}

// NewGeminiCompleter はGeminiCompleterを生成する。
func NewGeminiCompleter(ctx context.Context, cfg GeminiConfig) (*GeminiCompleter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 10
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	return &GeminiCompleter{
		client:  client,
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}, nil
}

// Complete はプロンプトに対する生成テキストを返す。
// レート制限に達している場合はトークンが補充されるかctxが終了するまで待つ。
func (g *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](0.7),
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return "", err
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

var _ Completer = (*GeminiCompleter)(nil)
