package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/blogman/internal/model"
)

// PostgresCategoryRepo はPostgreSQLを使用したカテゴリリポジトリ。
type PostgresCategoryRepo struct {
	db *sql.DB
}

// NewPostgresCategoryRepo はPostgresCategoryRepoを生成する。
func NewPostgresCategoryRepo(db *sql.DB) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{db: db}
}

func scanCategory(row rowScanner) (*model.Category, error) {
	c := &model.Category{}
	var description sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &description, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Description = nullStringValue(description)
	return c, nil
}

// List は全カテゴリを名前順に返す。
func (r *PostgresCategoryRepo) List(ctx context.Context) ([]*model.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, slug, description, created_at, updated_at FROM categories ORDER BY name ASC`,
	)
	if err != nil {
		return nil, storageError("カテゴリ一覧の取得に失敗しました", err)
	}
	defer rows.Close()

	categories := []*model.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, storageError("カテゴリの読み取りに失敗しました", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("カテゴリ一覧の読み取りに失敗しました", err)
	}
	return categories, nil
}

// FindByID は指定IDのカテゴリを取得する。見つからない場合はnilを返す。
func (r *PostgresCategoryRepo) FindByID(ctx context.Context, id string) (*model.Category, error) {
	if !validID(id) {
		return nil, nil
	}
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT id, name, slug, description, created_at, updated_at FROM categories WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("カテゴリの取得に失敗しました", err)
	}
	return c, nil
}

// Create はカテゴリを作成する。
func (r *PostgresCategoryRepo) Create(ctx context.Context, c *model.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, slug, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Name, c.Slug, nullString(c.Description), c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err, "") {
		return model.NewCategoryConflictError(c.Name)
	}
	if err != nil {
		return storageError("カテゴリの作成に失敗しました", err)
	}
	return nil
}

// Update はカテゴリを更新する。
func (r *PostgresCategoryRepo) Update(ctx context.Context, c *model.Category) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = $2, slug = $3, description = $4, updated_at = $5 WHERE id = $1`,
		c.ID, c.Name, c.Slug, nullString(c.Description), c.UpdatedAt,
	)
	if isUniqueViolation(err, "") {
		return model.NewCategoryConflictError(c.Name)
	}
	if err != nil {
		return storageError("カテゴリの更新に失敗しました", err)
	}
	return nil
}

// Delete はカテゴリを削除する。
func (r *PostgresCategoryRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id); err != nil {
		return storageError("カテゴリの削除に失敗しました", err)
	}
	return nil
}

// compile-time interface check
var _ CategoryRepository = (*PostgresCategoryRepo)(nil)
