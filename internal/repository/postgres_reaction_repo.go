package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/blogman/internal/model"
)

// PostgresReactionRepo はPostgreSQLを使用したリアクションリポジトリ。
// (対象種別, 対象ID, ユーザーID) を主キーとする1行でユーザーのリアクションを表すため、
// いいねとよくないねの集合は常に互いに素になる。
type PostgresReactionRepo struct {
	db *sql.DB
}

// NewPostgresReactionRepo はPostgresReactionRepoを生成する。
func NewPostgresReactionRepo(db *sql.DB) *PostgresReactionRepo {
	return &PostgresReactionRepo{db: db}
}

// Apply はユーザーのリアクションをUPSERTし、対象の最新の集合を返す。
// 反対側からの除去と指定側への追加は1つのINSERT ... ON CONFLICTで行われる。
// 既に同じリアクションの場合は何も変わらない。
func (r *PostgresReactionRepo) Apply(ctx context.Context, target model.ReactionTarget, targetID, userID string, action model.ReactionAction) (model.Reactions, error) {
	if !validID(targetID) || !validID(userID) {
		return model.Reactions{}, fmt.Errorf("invalid reaction reference: target=%s user=%s", targetID, userID)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Reactions{}, storageError("トランザクションの開始に失敗しました", err)
	}
	defer tx.Rollback()

	// 1. リアクションのUPSERT
	_, err = tx.ExecContext(ctx,
		`INSERT INTO reactions (target_type, target_id, user_id, kind, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, now(), now())
		 ON CONFLICT (target_type, target_id, user_id)
		 DO UPDATE SET kind = EXCLUDED.kind, updated_at = now()
		 WHERE reactions.kind <> EXCLUDED.kind`,
		string(target), targetID, userID, string(action),
	)
	if err != nil {
		return model.Reactions{}, storageError("リアクションの保存に失敗しました", err)
	}

	// 2. 更新後の集合を取得
	rows, err := tx.QueryContext(ctx,
		`SELECT user_id::text, kind FROM reactions WHERE target_type = $1 AND target_id = $2`,
		string(target), targetID,
	)
	if err != nil {
		return model.Reactions{}, storageError("リアクションの取得に失敗しました", err)
	}
	defer rows.Close()

	reactions := model.NewReactions()
	for rows.Next() {
		var uid, kind string
		if err := rows.Scan(&uid, &kind); err != nil {
			return model.Reactions{}, storageError("リアクションの読み取りに失敗しました", err)
		}
		switch model.ReactionAction(kind) {
		case model.ReactionLike:
			reactions.Likers[uid] = struct{}{}
		case model.ReactionDislike:
			reactions.Dislikers[uid] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return model.Reactions{}, storageError("リアクションの読み取りに失敗しました", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Reactions{}, storageError("トランザクションのコミットに失敗しました", err)
	}
	return reactions, nil
}

// compile-time interface check
var _ ReactionRepository = (*PostgresReactionRepo)(nil)
