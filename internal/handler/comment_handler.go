package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogman/internal/comment"
	"github.com/hitoshi/blogman/internal/model"
)

// CommentServiceInterface はコメントハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	AddComment(ctx context.Context, actor model.Actor, postID, content, parentID string) (*model.Comment, error)
	ListComments(ctx context.Context, postID string) ([]*model.Comment, error)
	ModerateComment(ctx context.Context, actor model.Actor, commentID string, status model.CommentStatus) (*model.Comment, error)
	ReactToComment(ctx context.Context, actor model.Actor, commentID string, action model.ReactionAction) (*model.Comment, error)
}

// CommentHandler はコメントのHTTPハンドラー。
type CommentHandler struct {
	service CommentServiceInterface
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(service CommentServiceInterface) *CommentHandler {
	return &CommentHandler{service: service}
}

// addCommentRequest はコメント投稿のリクエスト。
// 親コメントは parent で受け取る。旧クライアント向けに parentId も受け付ける。
type addCommentRequest struct {
	PostID   string `json:"postId"`
	Content  string `json:"content"`
	Parent   string `json:"parent"`
	ParentID string `json:"parentId"`
}

func (req addCommentRequest) parent() string {
	if req.Parent != "" {
		return req.Parent
	}
	return req.ParentID
}

type moderateRequest struct {
	Status string `json:"status"`
}

// listCommentsResponse はコメント一覧のレスポンス。
// commentsは作成順のフラットな一覧、treeは返信ツリー。
type listCommentsResponse struct {
	Comments []commentResponse     `json:"comments"`
	Tree     []commentNodeResponse `json:"tree"`
}

// ListComments は投稿のコメントを返す。非表示のコメントもstatus付きで含める。
// GET /api/comments/{id}（idは投稿ID）
func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.service.ListComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	flat := make([]commentResponse, len(comments))
	for i, c := range comments {
		flat[i] = toCommentResponse(c)
	}

	writeJSON(w, http.StatusOK, listCommentsResponse{
		Comments: flat,
		Tree:     toCommentTree(comment.BuildTree(comments)),
	})
}

// AddComment はコメントまたは返信を投稿する。
// POST /api/comments
func (h *CommentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req addCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.service.AddComment(r.Context(), actorFrom(r), req.PostID, req.Content, req.parent())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCommentResponse(c))
}

// React はコメントにいいね・よくないねを付ける。
// POST /api/comments/{id}/react
func (h *CommentHandler) React(w http.ResponseWriter, r *http.Request) {
	var req reactRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.service.ReactToComment(r.Context(), actorFrom(r), chi.URLParam(r, "id"), model.ReactionAction(req.Action))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{
		"likes":    c.Reactions.Likers.Slice(),
		"dislikes": c.Reactions.Dislikers.Slice(),
	})
}

// Moderate はコメントの表示状態を変更する（管理者のみ）。
// PUT /api/comments/{id}/moderate
func (h *CommentHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	var req moderateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.service.ModerateComment(r.Context(), actorFrom(r), chi.URLParam(r, "id"), model.CommentStatus(req.Status))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCommentResponse(c))
}
