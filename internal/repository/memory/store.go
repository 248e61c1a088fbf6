// Package memory はリポジトリインターフェースのインメモリ実装を提供する。
// ローカル開発（STORAGE_BACKEND=memory）とテストで使用する。
// すべての操作は1つのミューテックスで直列化されるため、単一エンティティへの
// 読み取り・変更・書き込みは常にアトミックになる。
package memory

import (
	"sync"
	"time"

	"github.com/hitoshi/blogman/internal/model"
)

// now は現在時刻を返す。テストで差し替える。
var now = time.Now

type reactionKey struct {
	target model.ReactionTarget
	id     string
}

// Store はすべてのエンティティを保持するインメモリストア。
type Store struct {
	mu sync.Mutex

	users      map[string]*model.User
	identities map[string]*model.Identity
	sessions   map[string]*model.Session

	posts      map[string]*model.Post
	postSlugs  map[string]string
	comments   map[string]*model.Comment
	reactions  map[reactionKey]model.Reactions
	notifs     map[string]*model.Notification
	categories map[string]*model.Category
}

// New は空のStoreを生成する。
func New() *Store {
	return &Store{
		users:      make(map[string]*model.User),
		identities: make(map[string]*model.Identity),
		sessions:   make(map[string]*model.Session),
		posts:      make(map[string]*model.Post),
		postSlugs:  make(map[string]string),
		comments:   make(map[string]*model.Comment),
		reactions:  make(map[reactionKey]model.Reactions),
		notifs:     make(map[string]*model.Notification),
		categories: make(map[string]*model.Category),
	}
}

// Posts は投稿リポジトリを返す。
func (s *Store) Posts() *PostRepo { return &PostRepo{s: s} }

// Comments はコメントリポジトリを返す。
func (s *Store) Comments() *CommentRepo { return &CommentRepo{s: s} }

// Reactions はリアクションリポジトリを返す。
func (s *Store) Reactions() *ReactionRepo { return &ReactionRepo{s: s} }

// Notifications は通知リポジトリを返す。
func (s *Store) Notifications() *NotificationRepo { return &NotificationRepo{s: s} }

// Categories はカテゴリリポジトリを返す。
func (s *Store) Categories() *CategoryRepo { return &CategoryRepo{s: s} }

// Users はユーザーリポジトリを返す。
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Identities はidentityリポジトリを返す。
func (s *Store) Identities() *IdentityRepo { return &IdentityRepo{s: s} }

// Sessions はセッションリポジトリを返す。
func (s *Store) Sessions() *SessionRepo { return &SessionRepo{s: s} }

// reactionsOf は対象の集合のコピーを返す。呼び出し側でロックを保持していること。
func (s *Store) reactionsOf(target model.ReactionTarget, id string) model.Reactions {
	r, ok := s.reactions[reactionKey{target: target, id: id}]
	if !ok {
		return model.NewReactions()
	}
	return r.Clone()
}
