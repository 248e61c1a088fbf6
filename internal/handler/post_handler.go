package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/post"
	"github.com/hitoshi/blogman/internal/render"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	CreatePost(ctx context.Context, actor model.Actor, in post.CreateInput) (*model.Post, error)
	GetPost(ctx context.Context, slug string) (*model.Post, error)
	UpdatePost(ctx context.Context, actor model.Actor, slug string, patch model.PostPatch) (*model.Post, error)
	DeletePost(ctx context.Context, actor model.Actor, slug string) error
	SetPostStatus(ctx context.Context, actor model.Actor, slug string, status model.PostStatus, reason string) (*model.Post, error)
	IncrementViews(ctx context.Context, slug string) (int64, error)
	ListPosts(ctx context.Context, q post.ListQuery) (*post.ListResult, error)
	ListMyPosts(ctx context.Context, actor model.Actor) ([]*model.Post, error)
	SearchPosts(ctx context.Context, query string) ([]*model.Post, error)
	ReactToPost(ctx context.Context, actor model.Actor, slug string, action model.ReactionAction) (*model.Post, error)
	AuthorProfiles(ctx context.Context, authorIDs []string) (map[string]*model.User, error)
}

// BodyRenderer は投稿本文をHTMLに変換する。
type BodyRenderer interface {
	Render(markdown string) (*render.Rendered, error)
}

// PostHandler は投稿管理のHTTPハンドラー。
type PostHandler struct {
	service  PostServiceInterface
	renderer BodyRenderer
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface, renderer BodyRenderer) *PostHandler {
	return &PostHandler{service: service, renderer: renderer}
}

// --- リクエスト型 ---

type createPostRequest struct {
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	Summary         string   `json:"summary"`
	MetaDescription string   `json:"metaDescription"`
	CoverImageURL   string   `json:"coverImageUrl"`
	Category        string   `json:"category"`
	Tags            []string `json:"tags"`
	Status          string   `json:"status"`
}

type updatePostRequest struct {
	Title           *string   `json:"title"`
	Content         *string   `json:"content"`
	Summary         *string   `json:"summary"`
	MetaDescription *string   `json:"metaDescription"`
	CoverImageURL   *string   `json:"coverImageUrl"`
	Category        *string   `json:"category"`
	Tags            *[]string `json:"tags"`
	Status          *string   `json:"status"`
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type reactRequest struct {
	Action string `json:"action"`
}

// listPostsResponse は投稿一覧のレスポンス。
type listPostsResponse struct {
	Data     []postResponse `json:"data"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
}

// ListPosts は投稿一覧を取得する。
// GET /api/posts?q=&tag=&category=&author=&status=&sort=&page=&limit=
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := intParam(q.Get("page"), 1)
	if err != nil {
		handleServiceError(w, model.NewValidationError("pageには整数を指定してください。"))
		return
	}
	limit, err := intParam(q.Get("limit"), post.DefaultPageSize)
	if err != nil {
		handleServiceError(w, model.NewValidationError("limitには整数を指定してください。"))
		return
	}

	result, err := h.service.ListPosts(r.Context(), post.ListQuery{
		Query:    q.Get("q"),
		Tag:      q.Get("tag"),
		Category: q.Get("category"),
		AuthorID: q.Get("author"),
		Status:   q.Get("status"),
		Sort:     q.Get("sort"),
		Page:     page,
		PageSize: limit,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	data := toPostResponses(result.Posts)
	h.attachAuthors(r.Context(), data)

	writeJSON(w, http.StatusOK, listPostsResponse{
		Data:     data,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	})
}

// GetPost は投稿を取得し、レンダリング済みHTMLを付与して返す。
// ETagが一致する場合は304を返す。
// GET /api/posts/{slug}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetPost(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := toPostResponse(p)
	authored := []postResponse{resp}
	h.attachAuthors(r.Context(), authored)
	resp = authored[0]
	if h.renderer != nil {
		rendered, err := h.renderer.Render(p.Content)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		resp.HTML = rendered.HTML
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(resp); err != nil {
		handleServiceError(w, err)
		return
	}

	etag := render.ETag(buf.String())
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// attachAuthors は投稿者の名前とアバターをレスポンスに付与する。
// 取得に失敗しても投稿自体は返すため、ログに残して付与を省略する。
func (h *PostHandler) attachAuthors(ctx context.Context, posts []postResponse) {
	if len(posts) == 0 {
		return
	}
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.Author
	}

	profiles, err := h.service.AuthorProfiles(ctx, ids)
	if err != nil {
		slog.WarnContext(ctx, "failed to load author profiles", slog.String("error", err.Error()))
		return
	}
	for i := range posts {
		if u, ok := profiles[posts[i].Author]; ok {
			posts[i].AuthorProfile = &authorProfile{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL}
		}
	}
}

// CreatePost は投稿を作成する。
// POST /api/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.CreatePost(r.Context(), actorFrom(r), post.CreateInput{
		Title:           req.Title,
		Content:         req.Content,
		Summary:         req.Summary,
		MetaDescription: req.MetaDescription,
		CoverImageURL:   req.CoverImageURL,
		Category:        req.Category,
		Tags:            req.Tags,
		Status:          model.PostStatus(req.Status),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPostResponse(p))
}

// UpdatePost は投稿の本文・メタデータを部分更新する。
// ステータスは変更できない。
// PUT /api/posts/{slug}
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var req updatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Status != nil {
		handleServiceError(w, model.NewValidationError("ステータスは専用のエンドポイントで変更してください。"))
		return
	}

	p, err := h.service.UpdatePost(r.Context(), actorFrom(r), chi.URLParam(r, "slug"), model.PostPatch{
		Title:           req.Title,
		Content:         req.Content,
		Summary:         req.Summary,
		MetaDescription: req.MetaDescription,
		CoverImageURL:   req.CoverImageURL,
		Category:        req.Category,
		Tags:            req.Tags,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostResponse(p))
}

// DeletePost は投稿を削除する。
// DELETE /api/posts/{slug}
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePost(r.Context(), actorFrom(r), chi.URLParam(r, "slug")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetStatus は投稿のステータスを変更する（管理者のみ）。
// PUT /api/posts/{slug}/status
func (h *PostHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.SetPostStatus(r.Context(), actorFrom(r), chi.URLParam(r, "slug"),
		model.PostStatus(req.Status), req.Reason)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostResponse(p))
}

// IncrementViews は閲覧数を1増やす。
// POST /api/posts/{slug}/views
func (h *PostHandler) IncrementViews(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.IncrementViews(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"views": views})
}

// React は投稿にいいね・よくないねを付ける。
// POST /api/posts/{slug}/react
func (h *PostHandler) React(w http.ResponseWriter, r *http.Request) {
	var req reactRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.ReactToPost(r.Context(), actorFrom(r), chi.URLParam(r, "slug"), model.ReactionAction(req.Action))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{
		"likes":    p.Reactions.Likers.Slice(),
		"dislikes": p.Reactions.Dislikers.Slice(),
	})
}

// Search は投稿を部分一致で検索する。
// GET /api/search?q=
func (h *PostHandler) Search(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.SearchPosts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": toPostResponses(posts)})
}

// ListMine は自分の投稿を全ステータス分返す。
// GET /api/users/me/posts
func (h *PostHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListMyPosts(r.Context(), actorFrom(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": toPostResponses(posts)})
}

// intParam はクエリパラメータを整数として解釈する。空の場合はdefaultValを返す。
func intParam(s string, defaultVal int) (int, error) {
	if s == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(s)
}
