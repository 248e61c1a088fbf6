package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/blogman/internal/model"
)

// PostgresNotificationRepo はPostgreSQLを使用した通知リポジトリ。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

// scanNotification は1行分の通知を読み取る。metaはJSONBから復元する。
func scanNotification(row rowScanner) (*model.Notification, error) {
	n := &model.Notification{}
	var typ string
	var meta []byte
	if err := row.Scan(&n.ID, &n.UserID, &typ, &n.Message, &meta, &n.Read, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Type = model.NotificationType(typ)
	n.Meta = map[string]string{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &n.Meta); err != nil {
			return nil, fmt.Errorf("通知metaの解析に失敗しました: %w", err)
		}
	}
	return n, nil
}

// Create は通知を作成する。
func (r *PostgresNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	meta := n.Meta
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("通知metaのエンコードに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, type, message, meta, read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.UserID, string(n.Type), n.Message, metaJSON, n.Read, n.CreatedAt,
	)
	if err != nil {
		return storageError("通知の作成に失敗しました", err)
	}
	return nil
}

// FindByID は指定IDの通知を取得する。見つからない場合はnilを返す。
func (r *PostgresNotificationRepo) FindByID(ctx context.Context, id string) (*model.Notification, error) {
	if !validID(id) {
		return nil, nil
	}
	n, err := scanNotification(r.db.QueryRowContext(ctx,
		`SELECT id, user_id, type, message, meta, read, created_at
		 FROM notifications WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("通知の取得に失敗しました", err)
	}
	return n, nil
}

// ListByUser はユーザー宛ての通知を新しい順に最大limit件返す。
func (r *PostgresNotificationRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	if !validID(userID) {
		return []*model.Notification{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, type, message, meta, read, created_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, storageError("通知一覧の取得に失敗しました", err)
	}
	defer rows.Close()

	notifications := []*model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, storageError("通知の読み取りに失敗しました", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("通知一覧の読み取りに失敗しました", err)
	}
	return notifications, nil
}

// MarkRead は通知を既読にする。
func (r *PostgresNotificationRepo) MarkRead(ctx context.Context, id string) error {
	if !validID(id) {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = true WHERE id = $1`, id)
	if err != nil {
		return storageError("通知の既読化に失敗しました", err)
	}
	return nil
}

// compile-time interface check
var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
