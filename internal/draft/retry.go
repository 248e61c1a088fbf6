package draft

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// Outcome は生成APIのエラーを再試行の観点で分類した結果。
type Outcome int

const (
	// OutcomeOK は成功。
	OutcomeOK Outcome = iota
	// OutcomeStop は再試行しても結果が変わらないエラー（認証失敗、不正なリクエストなど）。
	OutcomeStop
	// OutcomeBackoff は時間をおけば成功しうるエラー（429/5xx、通信断）。
	OutcomeBackoff
)

// RetryConfig は再試行の設定。
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig は既定の再試行設定を返す。初回500ms、2倍ずつ増加、最大4秒で3回まで試行する。
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     4 * time.Second,
	}
}

// ClassifyHTTPStatus はHTTPステータスコードを再試行の分類に変換する。
func ClassifyHTTPStatus(statusCode int) Outcome {
	switch {
	case statusCode < 300:
		return OutcomeOK
	case statusCode == http.StatusTooManyRequests:
		return OutcomeBackoff
	case statusCode >= 500:
		return OutcomeBackoff
	default:
		return OutcomeStop
	}
}

// ClassifyError は生成APIのエラーを分類する。
// APIエラーはステータスコードで判定し、呼び出し元のキャンセルは再試行しない。
func ClassifyError(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return OutcomeStop
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return ClassifyHTTPStatus(apiErr.Code)
	}
	// ステータスを持たないエラー（通信断、空応答）は一時的とみなす
	return OutcomeBackoff
}

// CalculateBackoff は試行回数（0始まり）に応じた指数バックオフ遅延を返す。
func (c RetryConfig) CalculateBackoff(attempt int) time.Duration {
	delay := c.InitialBackoff
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return delay
}

// RetryingCompleter は一時的な失敗を指数バックオフで再試行するCompleter。
type RetryingCompleter struct {
	next   Completer
	config RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryingCompleter はnextをラップしたRetryingCompleterを生成する。
func NewRetryingCompleter(next Completer, config RetryConfig) *RetryingCompleter {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &RetryingCompleter{next: next, config: config, sleep: sleepContext}
}

// Complete はnextを呼び出し、OutcomeBackoffのエラーであればMaxAttemptsまで再試行する。
func (r *RetryingCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := r.config.CalculateBackoff(attempt - 1)
			slog.Warn("retrying draft generation",
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()),
			)
			if err := r.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		text, err := r.next.Complete(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ClassifyError(err) != OutcomeBackoff {
			return "", err
		}
	}
	return "", lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Completer = (*RetryingCompleter)(nil)
