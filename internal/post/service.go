// Package post は投稿のライフサイクル（作成・編集・ステータス変更・閲覧数）を提供する。
// 権限の判定は呼び出し側（workflow）が行い、このパッケージは検証と永続化のみを担う。
package post

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
	"github.com/hitoshi/blogman/internal/slug"
)

const (
	// DefaultPageSize は一覧取得時の既定の1ページあたり件数。
	DefaultPageSize = 10
	// DefaultMaxPageSize は1ページあたり件数の既定の上限。
	DefaultMaxPageSize = 100
	// SearchLimit は検索結果の最大件数。
	SearchLimit = 20
	// MaxOffset は一覧取得でスキップできる件数の上限。これを超えるページ番号は不正とする。
	MaxOffset = 1<<31 - 1
)

// CreateInput は投稿作成時の入力を表す。
type CreateInput struct {
	Title           string
	Content         string
	Summary         string
	MetaDescription string
	CoverImageURL   string
	Category        string
	Tags            []string
	Status          model.PostStatus // 空の場合はdraft
}

// ListQuery は投稿一覧の検索条件（未検証）を表す。
type ListQuery struct {
	Query    string
	Tag      string
	Category string
	AuthorID string
	Status   string
	Sort     string // "createdAt"、降順は "-createdAt"
	Page     int
	PageSize int
}

// ListResult は投稿一覧の1ページ分を表す。
type ListResult struct {
	Posts    []*model.Post
	Total    int
	Page     int
	PageSize int
}

// ServiceConfig は投稿サービスの設定。
type ServiceConfig struct {
	MaxPageSize int
}

// Service は投稿のライフサイクルを管理する。
type Service struct {
	repo   repository.PostRepository
	config ServiceConfig
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.PostRepository, config ServiceConfig) *Service {
	if config.MaxPageSize <= 0 {
		config.MaxPageSize = DefaultMaxPageSize
	}
	return &Service{
		repo:   repo,
		config: config,
		now:    time.Now,
	}
}

// Create は投稿を作成する。
// タイトルと本文は必須。スラッグと読了時間はここで算出する。
// スラッグの重複は永続化層がConflictErrorとして返す。
func (s *Service) Create(ctx context.Context, authorID string, in CreateInput) (*model.Post, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, model.NewValidationError("タイトルは必須です。")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, model.NewValidationError("本文は必須です。")
	}

	status := in.Status
	if status == "" {
		status = model.PostStatusDraft
	}
	if !status.Valid() {
		return nil, model.NewInvalidStatusError(string(status))
	}

	id := uuid.New().String()
	now := s.now()
	p := &model.Post{
		ID:                 id,
		Slug:               makeSlug(title, id),
		Title:              title,
		Content:            in.Content,
		Summary:            in.Summary,
		MetaDescription:    in.MetaDescription,
		CoverImageURL:      in.CoverImageURL,
		Category:           strings.TrimSpace(in.Category),
		Tags:               normalizeTags(in.Tags),
		Status:             status,
		AuthorID:           authorID,
		Reactions:          model.NewReactions(),
		ReadingTimeMinutes: ReadingTime(in.Content),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetBySlug はスラッグで投稿を取得する。存在しない場合はNotFoundErrorを返す。
func (s *Service) GetBySlug(ctx context.Context, postSlug string) (*model.Post, error) {
	p, err := s.repo.FindBySlug(ctx, postSlug)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(postSlug)
	}
	return p, nil
}

// GetByID はIDで投稿を取得する。存在しない場合はNotFoundErrorを返す。
func (s *Service) GetByID(ctx context.Context, id string) (*model.Post, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(id)
	}
	return p, nil
}

// Update は取得済みの投稿に部分更新を適用して保存する。
// タイトルが変わればスラッグを、本文が変われば読了時間を再計算する。
func (s *Service) Update(ctx context.Context, p *model.Post, patch model.PostPatch) (*model.Post, error) {
	updated := *p

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, model.NewValidationError("タイトルは必須です。")
		}
		updated.Title = title
		updated.Slug = makeSlug(title, p.ID)
	}
	if patch.Content != nil {
		if strings.TrimSpace(*patch.Content) == "" {
			return nil, model.NewValidationError("本文は必須です。")
		}
		updated.Content = *patch.Content
		updated.ReadingTimeMinutes = ReadingTime(*patch.Content)
	}
	if patch.Summary != nil {
		updated.Summary = *patch.Summary
	}
	if patch.MetaDescription != nil {
		updated.MetaDescription = *patch.MetaDescription
	}
	if patch.CoverImageURL != nil {
		updated.CoverImageURL = *patch.CoverImageURL
	}
	if patch.Category != nil {
		updated.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Tags != nil {
		updated.Tags = normalizeTags(*patch.Tags)
	}
	updated.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete は投稿を物理削除する。
func (s *Service) Delete(ctx context.Context, p *model.Post) error {
	return s.repo.Delete(ctx, p.ID)
}

// SetStatus はステータスを無条件に上書きする。
// 遷移元のステータスは問わない。reasonは空でも上書きされる。
func (s *Service) SetStatus(ctx context.Context, postSlug string, status model.PostStatus, reason string) (*model.Post, error) {
	if !status.Valid() {
		return nil, model.NewInvalidStatusError(string(status))
	}

	p, err := s.repo.SetStatus(ctx, postSlug, status, strings.TrimSpace(reason))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(postSlug)
	}
	return p, nil
}

// IncrementViews は閲覧数を1増やし、更新後の値を返す。
func (s *Service) IncrementViews(ctx context.Context, postSlug string) (int64, error) {
	views, found, err := s.repo.IncrementViews(ctx, postSlug)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, model.NewPostNotFoundError(postSlug)
	}
	return views, nil
}

// List は条件に一致する投稿を1ページ分返す。
func (s *Service) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	order, err := ParseSort(q.Sort)
	if err != nil {
		return nil, err
	}

	status := model.PostStatus(q.Status)
	if status != "" && !status.Valid() {
		return nil, model.NewInvalidStatusError(q.Status)
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > s.config.MaxPageSize {
		pageSize = s.config.MaxPageSize
	}
	if page-1 > MaxOffset/pageSize {
		return nil, model.NewValidationError("ページ番号が大きすぎます。")
	}

	posts, total, err := s.repo.List(ctx, model.PostFilter{
		Query:    strings.TrimSpace(q.Query),
		Tag:      strings.TrimSpace(q.Tag),
		Category: strings.TrimSpace(q.Category),
		AuthorID: q.AuthorID,
		Status:   status,
		Sort:     order,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Posts:    posts,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// ListByAuthor は著者の全投稿をステータスを問わず新しい順に返す。
func (s *Service) ListByAuthor(ctx context.Context, authorID string) ([]*model.Post, error) {
	posts, _, err := s.repo.List(ctx, model.PostFilter{
		AuthorID: authorID,
		Sort:     model.PostSort{Field: model.PostSortCreatedAt, Desc: true},
	})
	return posts, err
}

// Search はタイトル・本文・カテゴリ・タグを部分一致で検索する。
// 空の検索語には空の結果を返す。
func (s *Service) Search(ctx context.Context, query string) ([]*model.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*model.Post{}, nil
	}
	return s.repo.Search(ctx, query, SearchLimit)
}

// ParseSort は "-createdAt" 形式の並び順指定を解析する。
// 空の場合は作成日時の降順（新しい順）を返す。
func ParseSort(s string) (model.PostSort, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.PostSort{Field: model.PostSortCreatedAt, Desc: true}, nil
	}

	desc := strings.HasPrefix(s, "-")
	field := model.PostSortField(strings.TrimPrefix(s, "-"))
	switch field {
	case model.PostSortCreatedAt, model.PostSortUpdatedAt, model.PostSortViews,
		model.PostSortTitle, model.PostSortReadingTime:
		return model.PostSort{Field: field, Desc: desc}, nil
	}
	return model.PostSort{}, model.NewInvalidSortError(s)
}

// makeSlug はタイトルからスラッグを生成する。
// 英数字が残らないタイトル（"日本語" など）は投稿IDの先頭8文字から "post-xxxxxxxx" を作る。
func makeSlug(title, id string) string {
	if s := slug.Make(title); s != "" {
		return s
	}
	if len(id) > 8 {
		id = id[:8]
	}
	return "post-" + id
}

// normalizeTags はタグの前後の空白を除去し、空のタグを捨てる。
func normalizeTags(tags []string) []string {
	result := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			result = append(result, t)
		}
	}
	return result
}
