package memory

import (
	"context"
	"sort"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
)

// CommentRepo はインメモリのコメントリポジトリ。
type CommentRepo struct {
	s *Store
}

func (r *CommentRepo) cloneComment(c *model.Comment) *model.Comment {
	cp := *c
	cp.Reactions = r.s.reactionsOf(model.ReactionTargetComment, c.ID)
	return &cp
}

// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
func (r *CommentRepo) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.comments[id]
	if !ok {
		return nil, nil
	}
	return r.cloneComment(c), nil
}

// Create はコメントを作成する。
func (r *CommentRepo) Create(ctx context.Context, c *model.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *c
	cp.Reactions = model.Reactions{}
	r.s.comments[c.ID] = &cp
	return nil
}

// ListByPost は投稿の全コメントを作成順に返す。
func (r *CommentRepo) ListByPost(ctx context.Context, postID string) ([]*model.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	result := []*model.Comment{}
	for _, c := range r.s.comments {
		if c.PostID == postID {
			result = append(result, r.cloneComment(c))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// SetStatus はコメントの表示状態を更新する。見つからない場合はnilを返す。
func (r *CommentRepo) SetStatus(ctx context.Context, id string, status model.CommentStatus) (*model.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.comments[id]
	if !ok {
		return nil, nil
	}
	c.Status = status
	c.UpdatedAt = now()
	return r.cloneComment(c), nil
}

// compile-time interface check
var _ repository.CommentRepository = (*CommentRepo)(nil)
