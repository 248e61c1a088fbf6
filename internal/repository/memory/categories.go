package memory

import (
	"context"
	"sort"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
)

// CategoryRepo はインメモリのカテゴリリポジトリ。
type CategoryRepo struct {
	s *Store
}

// List は全カテゴリを名前順に返す。
func (r *CategoryRepo) List(ctx context.Context) ([]*model.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	result := make([]*model.Category, 0, len(r.s.categories))
	for _, c := range r.s.categories {
		cp := *c
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// FindByID は指定IDのカテゴリを取得する。見つからない場合はnilを返す。
func (r *CategoryRepo) FindByID(ctx context.Context, id string) (*model.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.categories[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// Create はカテゴリを作成する。名前かスラッグが重複する場合はConflictErrorを返す。
func (r *CategoryRepo) Create(ctx context.Context, c *model.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.duplicated(c) {
		return model.NewCategoryConflictError(c.Name)
	}
	cp := *c
	r.s.categories[c.ID] = &cp
	return nil
}

// Update はカテゴリを更新する。
func (r *CategoryRepo) Update(ctx context.Context, c *model.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.categories[c.ID]; !ok {
		return nil
	}
	if r.duplicated(c) {
		return model.NewCategoryConflictError(c.Name)
	}
	cp := *c
	r.s.categories[c.ID] = &cp
	return nil
}

// Delete はカテゴリを削除する。
func (r *CategoryRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.categories, id)
	return nil
}

// duplicated は他のカテゴリと名前かスラッグが重複するかを返す。呼び出し側でロックを保持していること。
func (r *CategoryRepo) duplicated(c *model.Category) bool {
	for id, existing := range r.s.categories {
		if id != c.ID && (existing.Name == c.Name || existing.Slug == c.Slug) {
			return true
		}
	}
	return false
}

// compile-time interface check
var _ repository.CategoryRepository = (*CategoryRepo)(nil)
