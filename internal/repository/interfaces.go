// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/blogman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// PostRepository は投稿データの永続化インターフェース。
// 取得系メソッドはいいね・よくないねの集合も合わせて返す。
type PostRepository interface {
	// FindBySlug はスラッグで投稿を取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Post, error)
	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)
	// Create は投稿を作成する。スラッグが重複する場合はConflictErrorを返す。
	Create(ctx context.Context, post *model.Post) error
	// Update は本文・メタデータを更新する。閲覧数とステータスは更新しない。
	// 投稿が存在しない場合はNotFoundErrorを返す。
	// スラッグが重複する場合はConflictErrorを返す。
	Update(ctx context.Context, post *model.Post) error
	// Delete は投稿を物理削除する。
	Delete(ctx context.Context, id string) error
	// SetStatus はステータスとモデレーション理由を単一の更新で上書きする。
	// 見つからない場合はnilを返す。
	SetStatus(ctx context.Context, slug string, status model.PostStatus, reason string) (*model.Post, error)
	// IncrementViews は閲覧数をアトミックに1増やし、更新後の値を返す。
	// 見つからない場合はfoundがfalseになる。
	IncrementViews(ctx context.Context, slug string) (views int64, found bool, err error)
	// List は条件に一致する投稿の1ページ分と総件数を返す。
	List(ctx context.Context, filter model.PostFilter) ([]*model.Post, int, error)
	// Search はタイトル・本文・カテゴリ・タグを部分一致で検索し、新しい順に返す。
	Search(ctx context.Context, query string, limit int) ([]*model.Post, error)
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Comment, error)
	// Create はコメントを作成する。
	Create(ctx context.Context, comment *model.Comment) error
	// ListByPost は投稿の全コメントを作成順に返す。投稿が存在しない場合は空を返す。
	ListByPost(ctx context.Context, postID string) ([]*model.Comment, error)
	// SetStatus はコメントの表示状態を更新する。見つからない場合はnilを返す。
	SetStatus(ctx context.Context, id string, status model.CommentStatus) (*model.Comment, error)
}

// ReactionRepository はリアクションの永続化インターフェース。
type ReactionRepository interface {
	// Apply は対象エンティティに対するユーザーのリアクションを
	// 反対側の集合から除去した上で指定側に追加する。
	// 対象エンティティ単位でアトミックに行い、更新後の集合を返す。
	Apply(ctx context.Context, target model.ReactionTarget, targetID, userID string, action model.ReactionAction) (model.Reactions, error)
}

// NotificationRepository は通知データの永続化インターフェース。
type NotificationRepository interface {
	// Create は通知を作成する。
	Create(ctx context.Context, notification *model.Notification) error
	// FindByID は指定IDの通知を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Notification, error)
	// ListByUser はユーザー宛ての通知を新しい順に最大limit件返す。
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Notification, error)
	// MarkRead は通知を既読にする。既読の場合も成功する。
	MarkRead(ctx context.Context, id string) error
}

// CategoryRepository はカテゴリデータの永続化インターフェース。
type CategoryRepository interface {
	// List は全カテゴリを名前順に返す。
	List(ctx context.Context) ([]*model.Category, error)
	// FindByID は指定IDのカテゴリを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Category, error)
	// Create はカテゴリを作成する。名前が重複する場合はConflictErrorを返す。
	Create(ctx context.Context, category *model.Category) error
	// Update はカテゴリを更新する。名前が重複する場合はConflictErrorを返す。
	Update(ctx context.Context, category *model.Category) error
	// Delete はカテゴリを削除する。
	Delete(ctx context.Context, id string) error
}
