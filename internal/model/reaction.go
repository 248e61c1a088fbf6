package model

import "sort"

// ReactionAction はリアクションの種類を表す。
type ReactionAction string

const (
	ReactionLike    ReactionAction = "like"
	ReactionDislike ReactionAction = "dislike"
)

// Valid はリアクション種別が定義済みの値かどうかを返す。
func (a ReactionAction) Valid() bool {
	return a == ReactionLike || a == ReactionDislike
}

// ReactionTarget はリアクション対象のエンティティ種別を表す。
type ReactionTarget string

const (
	ReactionTargetPost    ReactionTarget = "post"
	ReactionTargetComment ReactionTarget = "comment"
)

// UserSet はユーザーIDの集合。
type UserSet map[string]struct{}

// NewUserSet は指定IDを含む集合を生成する。
func NewUserSet(ids ...string) UserSet {
	s := make(UserSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has は集合にIDが含まれるかを返す。
func (s UserSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Slice は集合をソート済みスライスとして返す。
func (s UserSet) Slice() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reactions はエンティティごとのいいね・よくないねの集合を表す。
// LikersとDislikersは常に互いに素である。
type Reactions struct {
	Likers    UserSet
	Dislikers UserSet
}

// NewReactions は空の集合を持つReactionsを生成する。
func NewReactions() Reactions {
	return Reactions{Likers: UserSet{}, Dislikers: UserSet{}}
}

// Clone は集合をコピーしたReactionsを返す。
func (r Reactions) Clone() Reactions {
	return Reactions{
		Likers:    NewUserSet(r.Likers.Slice()...),
		Dislikers: NewUserSet(r.Dislikers.Slice()...),
	}
}

// Of はユーザーの現在のリアクションを返す。どちらにも含まれない場合は空文字を返す。
func (r Reactions) Of(userID string) ReactionAction {
	switch {
	case r.Likers.Has(userID):
		return ReactionLike
	case r.Dislikers.Has(userID):
		return ReactionDislike
	default:
		return ""
	}
}

// Reactable はいいね・よくないねの集合を持つエンティティ（投稿・コメント）を表す。
type Reactable interface {
	// ReactionKey は対象種別とIDを返す。
	ReactionKey() (ReactionTarget, string)
	// ReactionSets は集合への参照を返す。
	ReactionSets() *Reactions
}
