package memory

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
)

// PostRepo はインメモリの投稿リポジトリ。
type PostRepo struct {
	s *Store
}

// clonePost は保存値を外部に渡すためのコピーを作る。呼び出し側でロックを保持していること。
func (r *PostRepo) clonePost(p *model.Post) *model.Post {
	cp := *p
	cp.Tags = append([]string{}, p.Tags...)
	cp.Reactions = r.s.reactionsOf(model.ReactionTargetPost, p.ID)
	return &cp
}

// FindBySlug はスラッグで投稿を取得する。見つからない場合はnilを返す。
func (r *PostRepo) FindBySlug(ctx context.Context, slug string) (*model.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.postSlugs[slug]
	if !ok {
		return nil, nil
	}
	return r.clonePost(r.s.posts[id]), nil
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.posts[id]
	if !ok {
		return nil, nil
	}
	return r.clonePost(p), nil
}

// Create は投稿を作成する。スラッグが重複する場合はConflictErrorを返す。
func (r *PostRepo) Create(ctx context.Context, post *model.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.postSlugs[post.Slug]; exists {
		return model.NewSlugConflictError(post.Slug)
	}
	cp := *post
	cp.Tags = append([]string{}, post.Tags...)
	cp.Reactions = model.Reactions{}
	r.s.posts[post.ID] = &cp
	r.s.postSlugs[post.Slug] = post.ID
	return nil
}

// Update は本文・メタデータを更新する。閲覧数・ステータスは保存値を維持する。
func (r *PostRepo) Update(ctx context.Context, post *model.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.posts[post.ID]
	if !ok {
		return model.NewPostNotFoundError(post.Slug)
	}
	if owner, exists := r.s.postSlugs[post.Slug]; exists && owner != post.ID {
		return model.NewSlugConflictError(post.Slug)
	}

	delete(r.s.postSlugs, current.Slug)
	r.s.postSlugs[post.Slug] = post.ID

	current.Slug = post.Slug
	current.Title = post.Title
	current.Content = post.Content
	current.Summary = post.Summary
	current.MetaDescription = post.MetaDescription
	current.CoverImageURL = post.CoverImageURL
	current.Category = post.Category
	current.Tags = append([]string{}, post.Tags...)
	current.ReadingTimeMinutes = post.ReadingTimeMinutes
	current.UpdatedAt = post.UpdatedAt
	return nil
}

// Delete は投稿を削除する。
func (r *PostRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if p, ok := r.s.posts[id]; ok {
		delete(r.s.postSlugs, p.Slug)
		delete(r.s.posts, id)
	}
	return nil
}

// SetStatus はステータスとモデレーション理由を上書きする。見つからない場合はnilを返す。
func (r *PostRepo) SetStatus(ctx context.Context, slug string, status model.PostStatus, reason string) (*model.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.postSlugs[slug]
	if !ok {
		return nil, nil
	}
	p := r.s.posts[id]
	p.Status = status
	p.ModerationReason = reason
	p.UpdatedAt = now()
	return r.clonePost(p), nil
}

// IncrementViews は閲覧数を1増やし、更新後の値を返す。
func (r *PostRepo) IncrementViews(ctx context.Context, slug string) (int64, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.postSlugs[slug]
	if !ok {
		return 0, false, nil
	}
	p := r.s.posts[id]
	p.Views++
	return p.Views, true, nil
}

// List は条件に一致する投稿の1ページ分と総件数を返す。
func (r *PostRepo) List(ctx context.Context, filter model.PostFilter) ([]*model.Post, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	query := strings.ToLower(filter.Query)
	matched := []*model.Post{}
	for _, p := range r.s.posts {
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Title), query) &&
			!strings.Contains(strings.ToLower(p.Content), query) {
			continue
		}
		if filter.Tag != "" && !slices.Contains(p.Tags, filter.Tag) {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.AuthorID != "" && p.AuthorID != filter.AuthorID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		matched = append(matched, p)
	}

	sortPosts(matched, filter.Sort)

	total := len(matched)
	if filter.PageSize > 0 {
		start := filter.Offset()
		if start < 0 || start > total {
			start = total
		}
		end := start + filter.PageSize
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}

	result := make([]*model.Post, 0, len(matched))
	for _, p := range matched {
		result = append(result, r.clonePost(p))
	}
	return result, total, nil
}

// Search はタイトル・本文・カテゴリ・タグを部分一致で検索し、新しい順に返す。
func (r *PostRepo) Search(ctx context.Context, q string, limit int) ([]*model.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q = strings.ToLower(q)
	matched := []*model.Post{}
	for _, p := range r.s.posts {
		if strings.Contains(strings.ToLower(p.Title), q) ||
			strings.Contains(strings.ToLower(p.Content), q) ||
			strings.Contains(strings.ToLower(p.Category), q) ||
			tagContains(p.Tags, q) {
			matched = append(matched, p)
		}
	}
	sortPosts(matched, model.PostSort{Field: model.PostSortCreatedAt, Desc: true})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	result := make([]*model.Post, 0, len(matched))
	for _, p := range matched {
		result = append(result, r.clonePost(p))
	}
	return result, nil
}

// sortPosts は並び順に従って投稿を並べ替える。同順位はIDで固定する。
func sortPosts(posts []*model.Post, order model.PostSort) {
	less := func(a, b *model.Post) int {
		switch order.Field {
		case model.PostSortUpdatedAt:
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case model.PostSortViews:
			return compareInt64(a.Views, b.Views)
		case model.PostSortTitle:
			return strings.Compare(a.Title, b.Title)
		case model.PostSortReadingTime:
			return compareInt64(int64(a.ReadingTimeMinutes), int64(b.ReadingTimeMinutes))
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(posts, func(i, j int) bool {
		c := less(posts[i], posts[j])
		if c == 0 {
			c = strings.Compare(posts[i].ID, posts[j].ID)
		}
		if order.Desc {
			return c > 0
		}
		return c < 0
	})
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func tagContains(tags []string, q string) bool {
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

// compile-time interface check
var _ repository.PostRepository = (*PostRepo)(nil)
