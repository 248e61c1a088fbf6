// Package comment は投稿へのコメントと返信ツリーを提供する。
package comment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
)

// Service はコメントの作成・取得・モデレーションを行う。
type Service struct {
	repo repository.CommentRepository
	now  func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.CommentRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Add は投稿にコメントを追加する。
// parentIDを指定する場合、親コメントは同じ投稿に属していなければならない。
// 作成日時は親コメントより前にならないよう補正する。
func (s *Service) Add(ctx context.Context, post *model.Post, authorID, content, parentID string) (*model.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, model.NewValidationError("コメント本文は必須です。")
	}

	createdAt := s.now()

	parentID = strings.TrimSpace(parentID)
	if parentID != "" {
		parent, err := s.repo.FindByID(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil || parent.PostID != post.ID {
			return nil, model.NewInvalidParentError(parentID)
		}
		if createdAt.Before(parent.CreatedAt) {
			createdAt = parent.CreatedAt
		}
	}

	c := &model.Comment{
		ID:        uuid.New().String(),
		PostID:    post.ID,
		ParentID:  parentID,
		AuthorID:  authorID,
		Content:   content,
		Status:    model.CommentStatusVisible,
		Reactions: model.NewReactions(),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get は指定IDのコメントを取得する。存在しない場合はNotFoundErrorを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Comment, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, model.NewCommentNotFoundError(id)
	}
	return c, nil
}

// List は投稿の全コメントを作成順に返す。非表示のコメントも含む。
// 投稿が存在しない（削除済みを含む）場合は空のスライスを返す。
func (s *Service) List(ctx context.Context, postID string) ([]*model.Comment, error) {
	return s.repo.ListByPost(ctx, postID)
}

// SetStatus はコメントの表示状態を変更する。
func (s *Service) SetStatus(ctx context.Context, id string, status model.CommentStatus) (*model.Comment, error) {
	if !status.Valid() {
		return nil, model.NewInvalidStatusError(string(status))
	}
	c, err := s.repo.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, model.NewCommentNotFoundError(id)
	}
	return c, nil
}
