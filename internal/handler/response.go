package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/blogman/internal/comment"
	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/model"
)

// maxRequestBody はJSONリクエストボディの上限バイト数。
const maxRequestBody = 1 << 20

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// decodeJSON はリクエストボディをデコードする。失敗時は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return false
	}
	return true
}

// actorFrom はリクエストコンテキストの利用者を返す。
// 未認証の場合はゼロ値を返し、認可はサービス層で判定する。
func actorFrom(r *http.Request) model.Actor {
	actor, _ := middleware.ActorFromContext(r.Context())
	return actor
}

// handleServiceError はサービス層から返されたエラーを分類に応じたHTTPステータスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		status := middleware.StatusForKind(apiErr.Kind)
		if status >= http.StatusInternalServerError {
			slog.Error("service unavailable", slog.String("error", err.Error()))
		}
		middleware.WriteErrorResponse(w, status, apiErr)
		return
	}

	if model.IsKind(err, model.KindStorage) {
		slog.Error("storage timeout", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewStorageError("処理がタイムアウトしました。", err))
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// --- レスポンス型 ---

// postResponse は投稿のレスポンス。
type postResponse struct {
	ID                 string           `json:"id"`
	Slug               string           `json:"slug"`
	Title              string           `json:"title"`
	Content            string           `json:"content"`
	HTML               string           `json:"html,omitempty"`
	Summary            string           `json:"summary"`
	MetaDescription    string           `json:"metaDescription"`
	CoverImageURL      string           `json:"coverImageUrl"`
	Category           string           `json:"category"`
	Tags               []string         `json:"tags"`
	Status             model.PostStatus `json:"status"`
	ModerationReason   string           `json:"moderationReason,omitempty"`
	Author             string           `json:"author"`
	AuthorProfile      *authorProfile   `json:"authorProfile,omitempty"`
	Views              int64            `json:"views"`
	Likes              []string         `json:"likes"`
	Dislikes           []string         `json:"dislikes"`
	ReadingTimeMinutes int              `json:"readingTimeMinutes"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

// authorProfile は投稿に付与する投稿者の公開情報。
type authorProfile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

func toPostResponse(p *model.Post) postResponse {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return postResponse{
		ID:                 p.ID,
		Slug:               p.Slug,
		Title:              p.Title,
		Content:            p.Content,
		Summary:            p.Summary,
		MetaDescription:    p.MetaDescription,
		CoverImageURL:      p.CoverImageURL,
		Category:           p.Category,
		Tags:               tags,
		Status:             p.Status,
		ModerationReason:   p.ModerationReason,
		Author:             p.AuthorID,
		Views:              p.Views,
		Likes:              p.Reactions.Likers.Slice(),
		Dislikes:           p.Reactions.Dislikers.Slice(),
		ReadingTimeMinutes: p.ReadingTimeMinutes,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func toPostResponses(posts []*model.Post) []postResponse {
	out := make([]postResponse, len(posts))
	for i, p := range posts {
		out[i] = toPostResponse(p)
	}
	return out
}

// commentResponse はコメントのレスポンス。
type commentResponse struct {
	ID        string              `json:"id"`
	PostID    string              `json:"postId"`
	Parent    *string             `json:"parent"`
	Author    string              `json:"author"`
	Content   string              `json:"content"`
	Status    model.CommentStatus `json:"status"`
	Likes     []string            `json:"likes"`
	Dislikes  []string            `json:"dislikes"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

func toCommentResponse(c *model.Comment) commentResponse {
	resp := commentResponse{
		ID:        c.ID,
		PostID:    c.PostID,
		Author:    c.AuthorID,
		Content:   c.Content,
		Status:    c.Status,
		Likes:     c.Reactions.Likers.Slice(),
		Dislikes:  c.Reactions.Dislikers.Slice(),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if !c.IsRoot() {
		parent := c.ParentID
		resp.Parent = &parent
	}
	return resp
}

// commentNodeResponse は返信ツリーの1ノード。
type commentNodeResponse struct {
	commentResponse
	Replies []commentNodeResponse `json:"replies"`
}

func toCommentTree(nodes []*comment.Node) []commentNodeResponse {
	out := make([]commentNodeResponse, len(nodes))
	for i, n := range nodes {
		out[i] = commentNodeResponse{
			commentResponse: toCommentResponse(n.Comment),
			Replies:         toCommentTree(n.Replies),
		}
	}
	return out
}

// notificationResponse は通知のレスポンス。
type notificationResponse struct {
	ID        string                 `json:"id"`
	Type      model.NotificationType `json:"type"`
	Message   string                 `json:"message"`
	Meta      map[string]string      `json:"meta"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"createdAt"`
}

func toNotificationResponse(n *model.Notification) notificationResponse {
	meta := n.Meta
	if meta == nil {
		meta = map[string]string{}
	}
	return notificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Message:   n.Message,
		Meta:      meta,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

// categoryResponse はカテゴリのレスポンス。
type categoryResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toCategoryResponse(c *model.Category) categoryResponse {
	return categoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}
