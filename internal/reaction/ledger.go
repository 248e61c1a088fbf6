// Package reaction は投稿・コメントに対するいいね・よくないねを管理する。
//
// 同じユーザーが同じ対象に持てるリアクションは「なし・いいね・よくないね」のいずれか1つ。
// リアクションは反対側の集合からユーザーを取り除いてから指定側に追加する。
// 2回目のいいねでいいねが取り消されることはない。取り消しはクライアント側で判断する。
package reaction

import (
	"context"
	"log/slog"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
)

// Apply はリアクションを集合に適用する。
// 反対側の集合からuserIDを除去し、指定側に追加する。どちらの操作も冪等。
func Apply(r *model.Reactions, userID string, action model.ReactionAction) {
	if r.Likers == nil {
		r.Likers = model.UserSet{}
	}
	if r.Dislikers == nil {
		r.Dislikers = model.UserSet{}
	}

	switch action {
	case model.ReactionLike:
		delete(r.Dislikers, userID)
		r.Likers[userID] = struct{}{}
	case model.ReactionDislike:
		delete(r.Likers, userID)
		r.Dislikers[userID] = struct{}{}
	}
}

// Ledger はリアクションの検証と永続化を行う。
// 対象が投稿かコメントかは区別しない。
type Ledger struct {
	repo repository.ReactionRepository
}

// NewLedger はLedgerを生成する。
func NewLedger(repo repository.ReactionRepository) *Ledger {
	return &Ledger{repo: repo}
}

// Toggle はユーザーのリアクションを対象に適用し、永続化後の集合でentityを更新する。
// 対象単位の排他は永続化層のApplyが保証する。
func (l *Ledger) Toggle(ctx context.Context, entity model.Reactable, userID string, action model.ReactionAction) error {
	if !action.Valid() {
		return model.NewInvalidReactionError(string(action))
	}
	if userID == "" {
		return model.NewUnauthenticatedError()
	}

	target, targetID := entity.ReactionKey()
	sets, err := l.repo.Apply(ctx, target, targetID, userID, action)
	if err != nil {
		return err
	}
	*entity.ReactionSets() = sets

	slog.Debug("reaction applied",
		slog.String("target", string(target)),
		slog.String("target_id", targetID),
		slog.String("user_id", userID),
		slog.String("action", string(action)),
	)
	return nil
}
