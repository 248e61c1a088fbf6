package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/model"
)

type mockCommentService struct {
	addCommentFn func(ctx context.Context, actor model.Actor, postID, content, parentID string) (*model.Comment, error)
}

func (m *mockCommentService) AddComment(ctx context.Context, actor model.Actor, postID, content, parentID string) (*model.Comment, error) {
	return m.addCommentFn(ctx, actor, postID, content, parentID)
}

func (m *mockCommentService) ListComments(ctx context.Context, postID string) ([]*model.Comment, error) {
	return nil, nil
}

func (m *mockCommentService) ModerateComment(ctx context.Context, actor model.Actor, commentID string, status model.CommentStatus) (*model.Comment, error) {
	return nil, nil
}

func (m *mockCommentService) ReactToComment(ctx context.Context, actor model.Actor, commentID string, action model.ReactionAction) (*model.Comment, error) {
	return nil, nil
}

func TestCommentHandler_AddComment_ParentField(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantParent string
	}{
		{"parentで返信先を指定", `{"postId":"p1","content":"reply","parent":"c1"}`, "c1"},
		{"旧フィールド名parentId", `{"postId":"p1","content":"reply","parentId":"c1"}`, "c1"},
		{"両方指定時はparentを優先", `{"postId":"p1","content":"reply","parent":"c2","parentId":"c1"}`, "c2"},
		{"親なし", `{"postId":"p1","content":"root"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotParent string
			svc := &mockCommentService{
				addCommentFn: func(ctx context.Context, actor model.Actor, postID, content, parentID string) (*model.Comment, error) {
					gotParent = parentID
					return &model.Comment{
						ID:        "new",
						PostID:    postID,
						ParentID:  parentID,
						AuthorID:  actor.ID,
						Content:   content,
						Status:    model.CommentStatusVisible,
						Reactions: model.NewReactions(),
					}, nil
				},
			}

			req := httptest.NewRequest(http.MethodPost, "/api/comments", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req = req.WithContext(middleware.ContextWithActor(req.Context(), model.Actor{ID: "reader", Role: model.RoleAuthor}))
			w := httptest.NewRecorder()

			NewCommentHandler(svc).AddComment(w, req)

			if w.Code != http.StatusCreated {
				t.Fatalf("status = %d, want 201, body = %s", w.Code, w.Body.String())
			}
			if gotParent != tt.wantParent {
				t.Errorf("service parentID = %q, want %q", gotParent, tt.wantParent)
			}

			var resp map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("レスポンスのデコードに失敗: %v", err)
			}
			if tt.wantParent == "" {
				if resp["parent"] != nil {
					t.Errorf("parent = %v, want null", resp["parent"])
				}
				return
			}
			if resp["parent"] != tt.wantParent {
				t.Errorf("parent = %v, want %q", resp["parent"], tt.wantParent)
			}
		})
	}
}
