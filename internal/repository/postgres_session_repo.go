package repository

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/hitoshi/blogman/internal/model"
)

// --- identities ---

// PostgresIdentityRepo は外部IdPとの紐付けをidentitiesテーブルから引くリポジトリ。
// 作成はユーザー作成と同じトランザクションで行うため、PostgresUserRepoが担う。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

// FindByProviderAndProviderUserID は(provider, provider_user_id)の一意キーで検索する。
func (r *PostgresIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	query, args, err := psql.
		Select("id", "user_id", "provider", "provider_user_id", "created_at").
		From("identities").
		Where(sq.Eq{"provider": provider, "provider_user_id": providerUserID}).
		ToSql()
	if err != nil {
		return nil, storageError("identity検索クエリの生成に失敗しました", err)
	}

	var id model.Identity
	err = r.db.QueryRowContext(ctx, query, args...).
		Scan(&id.ID, &id.UserID, &id.Provider, &id.ProviderUserID, &id.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("identityの取得に失敗しました", err)
	}
	return &id, nil
}

// --- sessions ---

// PostgresSessionRepo はログインセッションを保持するリポジトリ。
// 期限切れの行は読み取り時に無視し、物理削除はクリーンアップジョブに任せる。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	query, args, err := psql.Insert("sessions").
		Columns("id", "user_id", "expires_at", "created_at").
		Values(session.ID, session.UserID, session.ExpiresAt, session.CreatedAt).
		ToSql()
	if err != nil {
		return storageError("セッション作成クエリの生成に失敗しました", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return storageError("セッションの作成に失敗しました", err)
	}
	return nil
}

// FindByID は有効期限内のセッションを返す。期限切れや存在しない場合はnil。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	query, args, err := psql.
		Select("id", "user_id", "expires_at", "created_at").
		From("sessions").
		Where(sq.Eq{"id": id}).
		Where("expires_at > now()").
		ToSql()
	if err != nil {
		return nil, storageError("セッション検索クエリの生成に失敗しました", err)
	}

	var s model.Session
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("セッションの取得に失敗しました", err)
	}
	return &s, nil
}

// DeleteByID はセッションを削除する。存在しない場合も成功する。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	query, args, err := psql.Delete("sessions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return storageError("セッション削除クエリの生成に失敗しました", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return storageError("セッションの削除に失敗しました", err)
	}
	return nil
}

var (
	_ IdentityRepository = (*PostgresIdentityRepo)(nil)
	_ SessionRepository  = (*PostgresSessionRepo)(nil)
)
