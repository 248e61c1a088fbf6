// Package cleanup は永続化層の定期クリーンアップジョブを提供する。
// 投稿削除後に残ったコメント・リアクション、古い既読通知、期限切れセッションを
// バッチで削除する。コアの操作はこのジョブの実行を前提にしない。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// DefaultNotificationRetentionDays は既読通知の既定の保持日数。
const DefaultNotificationRetentionDays = 90

// step は1回のDELETE文で完結する削除処理。
type step struct {
	name  string
	query string
	args  func(j *CleanupJob) []interface{}
}

var steps = []step{
	{
		name:  "orphan_comments",
		query: `DELETE FROM comments c WHERE NOT EXISTS (SELECT 1 FROM posts p WHERE p.id = c.post_id)`,
	},
	{
		name: "orphan_reactions",
		query: `DELETE FROM reactions r
WHERE (r.target_type = 'post' AND NOT EXISTS (SELECT 1 FROM posts p WHERE p.id = r.target_id))
   OR (r.target_type = 'comment' AND NOT EXISTS (SELECT 1 FROM comments c WHERE c.id = r.target_id))`,
	},
	{
		name:  "read_notifications",
		query: `DELETE FROM notifications WHERE read AND created_at < now() - $1::interval`,
		args: func(j *CleanupJob) []interface{} {
			return []interface{}{fmt.Sprintf("%d days", j.NotificationRetentionDays)}
		},
	},
	{
		name:  "expired_sessions",
		query: `DELETE FROM sessions WHERE expires_at < now()`,
	},
}

// CleanupJob は永続化層のクリーンアップジョブ。
// 各削除は冪等で、削除対象がない場合もエラーにならない。
type CleanupJob struct {
	db                        Executor
	logger                    *slog.Logger
	NotificationRetentionDays int // 既読通知の保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:                        db,
		logger:                    logger,
		NotificationRetentionDays: DefaultNotificationRetentionDays,
	}
}

// Run は全ての削除処理を順に実行する。
// コメントの削除で生じた孤立リアクションも同じ実行で削除されるよう、コメントを先に処理する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	var total int64

	for _, s := range steps {
		var args []interface{}
		if s.args != nil {
			args = s.args(j)
		}

		result, err := j.db.ExecContext(ctx, s.query, args...)
		if err != nil {
			j.logger.Error("クリーンアップジョブの実行に失敗しました",
				slog.String("step", s.name),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("クリーンアップ(%s)の実行に失敗: %w", s.name, err)
		}

		deleted, err := result.RowsAffected()
		if err != nil {
			j.logger.Error("削除件数の取得に失敗しました",
				slog.String("step", s.name),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("削除件数の取得に失敗: %w", err)
		}
		total += deleted

		j.logger.Debug("クリーンアップ処理が完了しました",
			slog.String("step", s.name),
			slog.Int64("deleted_count", deleted),
		)
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", total),
		slog.Int("notification_retention_days", j.NotificationRetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// RunPeriodically はintervalごとにRunを実行する。ctxが終了するまで戻らない。
// 起動直後に1回実行する。個々の実行の失敗はログに残して次回に持ち越す。
func (j *CleanupJob) RunPeriodically(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_ = j.Run(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
