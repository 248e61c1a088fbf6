package model

import "time"

// PostStatus は投稿のモデレーション状態を表す。
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPending   PostStatus = "pending"
	PostStatusPublished PostStatus = "published"
	PostStatusRejected  PostStatus = "rejected"
)

// Valid はステータスが定義済みの値かどうかを返す。
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusPending, PostStatusPublished, PostStatusRejected:
		return true
	}
	return false
}

// Post は投稿を表す。
type Post struct {
	ID                 string
	Slug               string
	Title              string
	Content            string
	Summary            string
	MetaDescription    string
	CoverImageURL      string
	Category           string
	Tags               []string
	Status             PostStatus
	ModerationReason   string
	AuthorID           string
	Views              int64
	Reactions          Reactions
	ReadingTimeMinutes int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PostPatch は投稿の部分更新内容を表す。nilのフィールドは変更しない。
type PostPatch struct {
	Title           *string
	Content         *string
	Summary         *string
	MetaDescription *string
	CoverImageURL   *string
	Category        *string
	Tags            *[]string
}

// PostSortField は投稿一覧の並び替え対象を表す。
type PostSortField string

const (
	PostSortCreatedAt   PostSortField = "createdAt"
	PostSortUpdatedAt   PostSortField = "updatedAt"
	PostSortViews       PostSortField = "views"
	PostSortTitle       PostSortField = "title"
	PostSortReadingTime PostSortField = "readingTimeMinutes"
)

// PostSort は投稿一覧の並び順を表す。
type PostSort struct {
	Field PostSortField
	Desc  bool
}

// PostFilter は投稿一覧の検索条件を表す。
// 空文字のフィールドは条件に含めない。Pageは1始まり。
type PostFilter struct {
	Query    string
	Tag      string
	Category string
	AuthorID string
	Status   PostStatus
	Sort     PostSort
	Page     int
	PageSize int
}

// Offset はページ指定からスキップ件数を返す。
func (f PostFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// ReactionKey はReactableを実装する。
func (p *Post) ReactionKey() (ReactionTarget, string) {
	return ReactionTargetPost, p.ID
}

// ReactionSets はReactableを実装する。
func (p *Post) ReactionSets() *Reactions {
	return &p.Reactions
}
