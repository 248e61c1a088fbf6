package model

import "time"

// CommentStatus はコメントの表示状態を表す。
type CommentStatus string

const (
	CommentStatusVisible CommentStatus = "visible"
	CommentStatusHidden  CommentStatus = "hidden"
)

// Valid はステータスが定義済みの値かどうかを返す。
func (s CommentStatus) Valid() bool {
	return s == CommentStatusVisible || s == CommentStatusHidden
}

// Comment は投稿へのコメントを表す。
// ParentIDが空の場合はルートコメント。
type Comment struct {
	ID        string
	PostID    string
	ParentID  string
	AuthorID  string
	Content   string
	Status    CommentStatus
	Reactions Reactions
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsRoot はルートコメントかどうかを返す。
func (c *Comment) IsRoot() bool {
	return c.ParentID == ""
}

// ReactionKey はReactableを実装する。
func (c *Comment) ReactionKey() (ReactionTarget, string) {
	return ReactionTargetComment, c.ID
}

// ReactionSets はReactableを実装する。
func (c *Comment) ReactionSets() *Reactions {
	return &c.Reactions
}
