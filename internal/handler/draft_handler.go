package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/blogman/internal/draft"
	"github.com/hitoshi/blogman/internal/model"
)

// DraftServiceInterface は下書き生成ハンドラーが必要とするサービスインターフェース。
type DraftServiceInterface interface {
	GenerateDraft(ctx context.Context, actor model.Actor, prompt string) (*draft.Draft, error)
}

// DraftHandler は下書き自動生成のHTTPハンドラー。
type DraftHandler struct {
	service DraftServiceInterface
}

// NewDraftHandler はDraftHandlerを生成する。
func NewDraftHandler(service DraftServiceInterface) *DraftHandler {
	return &DraftHandler{service: service}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

// Generate はプロンプトから投稿の下書きを生成する。
// POST /api/ai/generate
func (h *DraftHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	d, err := h.service.GenerateDraft(r.Context(), actorFrom(r), req.Prompt)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}
