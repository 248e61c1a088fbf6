package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/blogman/internal/category"
	"github.com/hitoshi/blogman/internal/comment"
	"github.com/hitoshi/blogman/internal/draft"
	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/notification"
	"github.com/hitoshi/blogman/internal/post"
	"github.com/hitoshi/blogman/internal/reaction"
	"github.com/hitoshi/blogman/internal/render"
	"github.com/hitoshi/blogman/internal/repository/memory"
	"github.com/hitoshi/blogman/internal/security"
	"github.com/hitoshi/blogman/internal/syndication"
	"github.com/hitoshi/blogman/internal/user"
	"github.com/hitoshi/blogman/internal/workflow"
)

const (
	authorSession = "author-session"
	adminSession  = "admin-session"
	readerSession = "reader-session"
	testCSRFToken = "csrf-token-value"
)

// testServer はメモリストア上の実サービス群でルーターを構成したテスト用サーバー。
type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.New()
	if err := store.Users().CreateWithIdentity(context.Background(),
		&model.User{ID: "user-author", Email: "author@example.com", Name: "Author", AvatarURL: "https://example.com/author.png", Role: model.RoleAuthor},
		&model.Identity{ID: "ident-author", UserID: "user-author", Provider: "google", ProviderUserID: "sub-author"},
	); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	renderer := render.NewRenderer(security.NewRenderedHTMLPolicy())
	coordinator := workflow.NewCoordinator(workflow.Services{
		Posts:         post.NewService(store.Posts(), post.ServiceConfig{MaxPageSize: 100}),
		Comments:      comment.NewService(store.Comments()),
		Reactions:     reaction.NewLedger(store.Reactions()),
		Notifications: notification.NewService(store.Notifications(), notification.ServiceConfig{ListLimit: 50}),
		Categories:    category.NewService(store.Categories()),
		Drafts:        draft.NewGenerator(nil),
		Users:         user.NewService(store.Users()),
	}, nil)

	actors := map[string]model.Actor{
		authorSession: {ID: "user-author", Role: model.RoleAuthor},
		adminSession:  {ID: "user-admin", Role: model.RoleAdmin},
		readerSession: {ID: "user-reader", Role: model.RoleAuthor},
	}
	authSvc := &mockAuthService{
		resolveActorFn: func(ctx context.Context, sessionID string) (*model.Actor, error) {
			a, ok := actors[sessionID]
			if !ok {
				return nil, nil
			}
			return &a, nil
		},
	}

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return &testServer{
		t: t,
		handler: NewRouter(&RouterDeps{
			CORSAllowedOrigin: "http://localhost:3000",
			RateLimiter:       rl,
			AuthService:       authSvc,
			AuthConfig:        AuthHandlerConfig{BaseURL: "http://localhost:3000"},
			Services:          coordinator,
			Renderer:          renderer,
			Feed: syndication.NewRSSBuilder(syndication.Config{
				Title:   "blogman",
				BaseURL: "http://localhost:3000",
			}, renderer),
			Logger: slogDiscard(),
		}),
	}
}

// do はリクエストを送信する。sessionが空でなければセッションCookieとCSRFトークンを付与する。
func (s *testServer) do(method, path, session string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: session})
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
		req.Header.Set("X-CSRF-Token", testCSRFToken)
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testServer) createPost(session, title, status string) postResponse {
	s.t.Helper()

	w := s.do(http.MethodPost, "/api/posts", session, map[string]any{
		"title":    title,
		"content":  "# Heading\n\nSome **bold** text.",
		"category": "go",
		"tags":     []string{"go", "web"},
		"status":   status,
	})
	if w.Code != http.StatusCreated {
		s.t.Fatalf("create post: status = %d, body = %s", w.Code, w.Body.String())
	}
	var p postResponse
	decodeBody(s.t, w, &p)
	return p
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, w.Body.String())
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	decodeBody(t, w, &body)
	return body.Code
}

// --- テスト ---

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRouter_ProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/posts"},
		{http.MethodPut, "/api/posts/some-slug"},
		{http.MethodDelete, "/api/posts/some-slug"},
		{http.MethodPost, "/api/posts/some-slug/react"},
		{http.MethodPut, "/api/posts/some-slug/status"},
		{http.MethodPost, "/api/comments"},
		{http.MethodGet, "/api/notifications"},
		{http.MethodPost, "/api/ai/generate"},
		{http.MethodGet, "/api/users/me/posts"},
		{http.MethodPost, "/api/categories"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := s.do(rt.method, rt.path, "", map[string]string{})
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestRouter_UnknownSessionIsUnauthenticated(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/notifications", "unknown-session", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRouter_WriteWithoutCSRFTokenIsForbidden(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(`{"title":"x","content":"y"}`))
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: authorSession})
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestRouter_PostLifecycle(t *testing.T) {
	s := newTestServer(t)

	created := s.createPost(authorSession, "Hello World", "published")
	if created.Slug != "hello-world" {
		t.Fatalf("slug = %q, want hello-world", created.Slug)
	}
	if created.Author != "user-author" {
		t.Errorf("author = %q, want user-author", created.Author)
	}

	// 匿名で取得できる
	w := s.do(http.MethodGet, "/api/posts/hello-world", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status = %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Error("ETag header should be set")
	}
	var got postResponse
	decodeBody(t, w, &got)
	if !strings.Contains(got.HTML, "<strong>bold</strong>") {
		t.Errorf("html = %q, want rendered markdown", got.HTML)
	}

	// 同じETagなら304
	req := httptest.NewRequest(http.MethodGet, "/api/posts/hello-world", nil)
	req.Header.Set("If-None-Match", etag)
	notModified := httptest.NewRecorder()
	s.handler.ServeHTTP(notModified, req)
	if notModified.Code != http.StatusNotModified {
		t.Errorf("conditional get: status = %d, want 304", notModified.Code)
	}

	// 閲覧数の加算でETagが変わる
	w = s.do(http.MethodPost, "/api/posts/hello-world/views", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("views: status = %d", w.Code)
	}
	w = s.do(http.MethodGet, "/api/posts/hello-world", "", nil)
	if w.Header().Get("ETag") == etag {
		t.Error("ETag should change after views increment")
	}

	// 他人は更新できない
	w = s.do(http.MethodPut, "/api/posts/hello-world", readerSession, map[string]any{"title": "Hijacked"})
	if w.Code != http.StatusForbidden {
		t.Errorf("update by other: status = %d, want 403", w.Code)
	}

	// ステータスはPUT /posts/{slug}では変更できない
	w = s.do(http.MethodPut, "/api/posts/hello-world", authorSession, map[string]any{"status": "draft"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("update status field: status = %d, want 400", w.Code)
	}

	// 管理者以外はモデレーションできない
	w = s.do(http.MethodPut, "/api/posts/hello-world/status", authorSession, map[string]any{"status": "rejected"})
	if w.Code != http.StatusForbidden {
		t.Errorf("set status by author: status = %d, want 403", w.Code)
	}
	w = s.do(http.MethodPut, "/api/posts/hello-world/status", adminSession, map[string]any{"status": "rejected", "reason": "spam"})
	if w.Code != http.StatusOK {
		t.Fatalf("set status by admin: status = %d, body = %s", w.Code, w.Body.String())
	}
	decodeBody(t, w, &got)
	if got.Status != model.PostStatusRejected || got.ModerationReason != "spam" {
		t.Errorf("status = %q reason = %q", got.Status, got.ModerationReason)
	}

	// 削除後は404
	w = s.do(http.MethodDelete, "/api/posts/hello-world", authorSession, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d", w.Code)
	}
	w = s.do(http.MethodGet, "/api/posts/hello-world", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", w.Code)
	}
	if code := errorCode(t, w); code != model.ErrCodePostNotFound {
		t.Errorf("code = %q, want %q", code, model.ErrCodePostNotFound)
	}
}

func TestRouter_DuplicateTitleConflicts(t *testing.T) {
	s := newTestServer(t)
	s.createPost(authorSession, "Same Title", "draft")

	w := s.do(http.MethodPost, "/api/posts", authorSession, map[string]any{
		"title":   "Same Title",
		"content": "other body",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestRouter_ListPosts(t *testing.T) {
	s := newTestServer(t)
	s.createPost(authorSession, "First Post", "published")
	s.createPost(authorSession, "Second Post", "published")
	s.createPost(authorSession, "Hidden Draft", "draft")

	w := s.do(http.MethodGet, "/api/posts?status=published&limit=1&page=2&sort=title", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var list listPostsResponse
	decodeBody(t, w, &list)
	if list.Total != 2 || list.Page != 2 || list.PageSize != 1 {
		t.Errorf("total=%d page=%d pageSize=%d", list.Total, list.Page, list.PageSize)
	}
	if len(list.Data) != 1 || list.Data[0].Slug != "second-post" {
		t.Errorf("data = %+v, want [second-post]", list.Data)
	}

	w = s.do(http.MethodGet, "/api/posts?sort=bogus", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid sort: status = %d, want 400", w.Code)
	}
	w = s.do(http.MethodGet, "/api/posts?page=abc", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid page: status = %d, want 400", w.Code)
	}

	// 自分の投稿はステータスを問わず返る
	w = s.do(http.MethodGet, "/api/users/me/posts", authorSession, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("mine: status = %d", w.Code)
	}
	var mine struct {
		Data []postResponse `json:"data"`
	}
	decodeBody(t, w, &mine)
	if len(mine.Data) != 3 {
		t.Errorf("mine = %d posts, want 3", len(mine.Data))
	}
}

func TestRouter_ReactToPost(t *testing.T) {
	s := newTestServer(t)
	s.createPost(authorSession, "Reactable", "published")

	w := s.do(http.MethodPost, "/api/posts/reactable/react", readerSession, map[string]string{"action": "like"})
	if w.Code != http.StatusOK {
		t.Fatalf("like: status = %d, body = %s", w.Code, w.Body.String())
	}
	w = s.do(http.MethodPost, "/api/posts/reactable/react", readerSession, map[string]string{"action": "dislike"})
	if w.Code != http.StatusOK {
		t.Fatalf("dislike: status = %d", w.Code)
	}
	var counts struct {
		Likes    []string `json:"likes"`
		Dislikes []string `json:"dislikes"`
	}
	decodeBody(t, w, &counts)
	if len(counts.Likes) != 0 || len(counts.Dislikes) != 1 || counts.Dislikes[0] != "user-reader" {
		t.Errorf("likes=%v dislikes=%v", counts.Likes, counts.Dislikes)
	}

	w = s.do(http.MethodPost, "/api/posts/reactable/react", readerSession, map[string]string{"action": "love"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid action: status = %d, want 400", w.Code)
	}
}

func TestRouter_CommentsAndNotifications(t *testing.T) {
	s := newTestServer(t)
	p := s.createPost(authorSession, "Discussed", "published")

	w := s.do(http.MethodPost, "/api/comments", readerSession, map[string]string{
		"postId":  p.ID,
		"content": "Nice post",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add comment: status = %d, body = %s", w.Code, w.Body.String())
	}
	var root commentResponse
	decodeBody(t, w, &root)
	if root.Parent != nil {
		t.Errorf("root parent = %v, want null", *root.Parent)
	}

	w = s.do(http.MethodPost, "/api/comments", authorSession, map[string]string{
		"postId":  p.ID,
		"content": "Thanks!",
		"parent":  root.ID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("reply: status = %d, body = %s", w.Code, w.Body.String())
	}

	w = s.do(http.MethodGet, "/api/comments/"+p.ID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list comments: status = %d", w.Code)
	}
	var list listCommentsResponse
	decodeBody(t, w, &list)
	if len(list.Comments) != 2 {
		t.Fatalf("comments = %d, want 2", len(list.Comments))
	}
	if len(list.Tree) != 1 || len(list.Tree[0].Replies) != 1 {
		t.Fatalf("tree = %+v, want one root with one reply", list.Tree)
	}
	if list.Tree[0].Replies[0].Content != "Thanks!" {
		t.Errorf("reply content = %q", list.Tree[0].Replies[0].Content)
	}

	// 存在しない投稿のコメントは空
	w = s.do(http.MethodGet, "/api/comments/no-such-post", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("comments of missing post: status = %d, want 200", w.Code)
	}
	var empty listCommentsResponse
	decodeBody(t, w, &empty)
	if len(empty.Comments) != 0 {
		t.Errorf("comments = %d, want 0", len(empty.Comments))
	}

	// 投稿者にコメント通知が届く
	w = s.do(http.MethodGet, "/api/notifications", authorSession, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("notifications: status = %d", w.Code)
	}
	var notes struct {
		Data []notificationResponse `json:"data"`
	}
	decodeBody(t, w, &notes)
	if len(notes.Data) == 0 {
		t.Fatal("post author should receive a notification")
	}

	// 他人の通知は既読にできない
	w = s.do(http.MethodPut, "/api/notifications/"+notes.Data[0].ID+"/read", readerSession, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("mark other's notification: status = %d, want 403", w.Code)
	}
	w = s.do(http.MethodPut, "/api/notifications/"+notes.Data[0].ID+"/read", authorSession, nil)
	if w.Code != http.StatusOK {
		t.Errorf("mark read: status = %d, want 200", w.Code)
	}
}

func TestRouter_GenerateDraftUnavailable(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/ai/generate", authorSession, map[string]string{
		"prompt": "Write about Go concurrency patterns",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if code := errorCode(t, w); code != model.ErrCodeDraftUnavailable {
		t.Errorf("code = %q, want %q", code, model.ErrCodeDraftUnavailable)
	}
}

func TestRouter_CategoriesAdminOnly(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/categories", authorSession, map[string]string{"name": "Go"})
	if w.Code != http.StatusForbidden {
		t.Errorf("create by user: status = %d, want 403", w.Code)
	}
	w = s.do(http.MethodPost, "/api/categories", adminSession, map[string]string{"name": "Go", "description": "Gopher things"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create by admin: status = %d, body = %s", w.Code, w.Body.String())
	}

	w = s.do(http.MethodGet, "/api/categories", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status = %d", w.Code)
	}
	var list struct {
		Data []categoryResponse `json:"data"`
	}
	decodeBody(t, w, &list)
	if len(list.Data) != 1 || list.Data[0].Name != "Go" {
		t.Errorf("categories = %+v", list.Data)
	}
}

func TestRouter_FeedContainsPublishedPostsOnly(t *testing.T) {
	s := newTestServer(t)
	s.createPost(authorSession, "Public Post", "published")
	s.createPost(authorSession, "Secret Draft", "draft")

	w := s.do(http.MethodGet, "/feed.xml", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/rss+xml") {
		t.Errorf("Content-Type = %q", ct)
	}

	feed, err := gofeed.NewParser().Parse(w.Body)
	if err != nil {
		t.Fatalf("parse feed: %v", err)
	}
	if len(feed.Items) != 1 || feed.Items[0].Title != "Public Post" {
		t.Errorf("items = %d, want only the published post", len(feed.Items))
	}
}

func TestRouter_GetUserAndAuthorProfiles(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/users/user-author", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get user: status = %d, body = %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "author@example.com") {
		t.Error("public profile must not expose the email address")
	}
	var got struct {
		User userResponse `json:"user"`
	}
	decodeBody(t, w, &got)
	if got.User.Name != "Author" || got.User.AvatarURL != "https://example.com/author.png" {
		t.Errorf("user = %+v", got.User)
	}

	w = s.do(http.MethodGet, "/api/users/nobody", "", nil)
	if w.Code != http.StatusNotFound || errorCode(t, w) != model.ErrCodeUserNotFound {
		t.Errorf("unknown user: status = %d", w.Code)
	}

	p := s.createPost(authorSession, "Profiled", "published")

	w = s.do(http.MethodGet, "/api/posts/"+p.Slug, "", nil)
	var detail postResponse
	decodeBody(t, w, &detail)
	if detail.AuthorProfile == nil || detail.AuthorProfile.Name != "Author" {
		t.Errorf("detail authorProfile = %+v", detail.AuthorProfile)
	}

	w = s.do(http.MethodGet, "/api/posts", "", nil)
	var list listPostsResponse
	decodeBody(t, w, &list)
	if len(list.Data) != 1 || list.Data[0].AuthorProfile == nil || list.Data[0].AuthorProfile.AvatarURL != "https://example.com/author.png" {
		t.Errorf("list authorProfile = %+v", list.Data)
	}

	// プロフィールのないユーザーの投稿はauthorProfileを省略する
	other := s.createPost(readerSession, "Anonymous Looking", "published")
	w = s.do(http.MethodGet, "/api/posts/"+other.Slug, "", nil)
	if strings.Contains(w.Body.String(), "authorProfile") {
		t.Errorf("authorProfile should be omitted: %s", w.Body.String())
	}
}
