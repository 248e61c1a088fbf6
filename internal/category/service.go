// Package category は投稿カテゴリの管理を提供する。
package category

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
	"github.com/hitoshi/blogman/internal/slug"
)

// Service はカテゴリのCRUDを行う。
type Service struct {
	repo repository.CategoryRepository
	now  func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.CategoryRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List は全カテゴリを名前順に返す。
func (s *Service) List(ctx context.Context) ([]*model.Category, error) {
	return s.repo.List(ctx)
}

// Create はカテゴリを作成する。名前の重複は永続化層がConflictErrorとして返す。
func (s *Service) Create(ctx context.Context, name, description string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	categorySlug, err := categorySlug(name)
	if err != nil {
		return nil, err
	}

	now := s.now()
	c := &model.Category{
		ID:          uuid.New().String(),
		Name:        name,
		Slug:        categorySlug,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Update はカテゴリの名前・説明を更新する。nilのフィールドは変更しない。
func (s *Service) Update(ctx context.Context, id string, name, description *string) (*model.Category, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, model.NewCategoryNotFoundError(id)
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		categorySlug, err := categorySlug(trimmed)
		if err != nil {
			return nil, err
		}
		c.Name = trimmed
		c.Slug = categorySlug
	}
	if description != nil {
		c.Description = strings.TrimSpace(*description)
	}
	c.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete はカテゴリを削除する。存在しない場合はNotFoundErrorを返す。
// カテゴリ名は投稿に文字列として保存されているため、投稿側は変更しない。
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return model.NewCategoryNotFoundError(id)
	}
	return s.repo.Delete(ctx, id)
}

func categorySlug(name string) (string, error) {
	if name == "" {
		return "", model.NewValidationError("カテゴリ名は必須です。")
	}
	s := slug.Make(name)
	if s == "" {
		return "", model.NewValidationError("カテゴリ名には英数字を1文字以上含めてください。")
	}
	return s, nil
}
