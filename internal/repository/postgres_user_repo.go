package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/hitoshi/blogman/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if !validID(id) {
		return nil, nil
	}
	query, args, err := psql.
		Select("id", "email", "name", "avatar_url", "role", "created_at", "updated_at").
		From("users").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, storageError("ユーザー検索クエリの生成に失敗しました", err)
	}

	var u model.User
	var role string
	err = r.db.QueryRowContext(ctx, query, args...).
		Scan(&u.ID, &u.Email, &u.Name, &u.AvatarURL, &role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("ユーザーの取得に失敗しました", err)
	}
	u.Role = model.Role(role)
	return &u, nil
}

// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
// メールアドレスが既存ユーザーと重複する場合はConflictErrorを返す。
func (r *PostgresUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	insertUser, userArgs, err := psql.Insert("users").
		Columns("id", "email", "name", "avatar_url", "role", "created_at", "updated_at").
		Values(user.ID, user.Email, user.Name, user.AvatarURL, string(user.Role), user.CreatedAt, user.UpdatedAt).
		ToSql()
	if err != nil {
		return storageError("ユーザー作成クエリの生成に失敗しました", err)
	}
	insertIdentity, identityArgs, err := psql.Insert("identities").
		Columns("id", "user_id", "provider", "provider_user_id", "created_at").
		Values(identity.ID, identity.UserID, identity.Provider, identity.ProviderUserID, identity.CreatedAt).
		ToSql()
	if err != nil {
		return storageError("identity作成クエリの生成に失敗しました", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("トランザクションの開始に失敗しました", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, insertUser, userArgs...)
	if isUniqueViolation(err, "users_email_key") {
		return &model.APIError{
			Code:     "EMAIL_CONFLICT",
			Message:  fmt.Sprintf("同じメールアドレスのユーザーが既に存在します: %s", user.Email),
			Category: "auth",
			Action:   "既存のアカウントでログインしてください。",
			Kind:     model.KindConflict,
		}
	}
	if err != nil {
		return storageError("ユーザーの作成に失敗しました", err)
	}

	if _, err := tx.ExecContext(ctx, insertIdentity, identityArgs...); err != nil {
		return storageError("identityの作成に失敗しました", err)
	}

	if err := tx.Commit(); err != nil {
		return storageError("トランザクションのコミットに失敗しました", err)
	}
	return nil
}

var _ UserRepository = (*PostgresUserRepo)(nil)
