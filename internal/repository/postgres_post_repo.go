package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/hitoshi/blogman/internal/model"
)

// psql はPostgreSQLのプレースホルダ（$n）で動的SQLを組み立てるビルダー。
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// postColumns は投稿の取得カラム。いいね・よくないねはreactionsテーブルから集約する。
var postColumns = []string{
	"p.id", "p.slug", "p.title", "p.content", "p.summary", "p.meta_description",
	"p.cover_image_url", "p.category", "p.tags", "p.status", "p.moderation_reason",
	"p.author_id", "p.views", "p.reading_time_minutes", "p.created_at", "p.updated_at",
	reactionAggregate("post", "p.id", model.ReactionLike) + " AS likers",
	reactionAggregate("post", "p.id", model.ReactionDislike) + " AS dislikers",
}

// postSortColumns は並び替え指定とカラムの対応。
var postSortColumns = map[model.PostSortField]string{
	model.PostSortCreatedAt:   "p.created_at",
	model.PostSortUpdatedAt:   "p.updated_at",
	model.PostSortViews:       "p.views",
	model.PostSortTitle:       "p.title",
	model.PostSortReadingTime: "p.reading_time_minutes",
}

// reactionAggregate は対象エンティティのリアクションをユーザーIDの配列に集約するサブクエリを返す。
func reactionAggregate(targetType, idColumn string, kind model.ReactionAction) string {
	return fmt.Sprintf(
		`COALESCE((SELECT array_agg(r.user_id::text ORDER BY r.user_id)
		  FROM reactions r
		  WHERE r.target_type = '%s' AND r.target_id = %s AND r.kind = '%s'), '{}')`,
		targetType, idColumn, kind,
	)
}

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPost は1行分の投稿を読み取る。
func scanPost(row rowScanner) (*model.Post, error) {
	post := &model.Post{}
	var summary, metaDescription, coverImageURL, category, moderationReason sql.NullString
	var tags, likers, dislikers []string
	var status string

	err := row.Scan(
		&post.ID, &post.Slug, &post.Title, &post.Content, &summary, &metaDescription,
		&coverImageURL, &category, pq.Array(&tags), &status, &moderationReason,
		&post.AuthorID, &post.Views, &post.ReadingTimeMinutes, &post.CreatedAt, &post.UpdatedAt,
		pq.Array(&likers), pq.Array(&dislikers),
	)
	if err != nil {
		return nil, err
	}

	post.Summary = nullStringValue(summary)
	post.MetaDescription = nullStringValue(metaDescription)
	post.CoverImageURL = nullStringValue(coverImageURL)
	post.Category = nullStringValue(category)
	post.ModerationReason = nullStringValue(moderationReason)
	post.Status = model.PostStatus(status)
	post.Tags = tags
	if post.Tags == nil {
		post.Tags = []string{}
	}
	post.Reactions = model.Reactions{
		Likers:    model.NewUserSet(likers...),
		Dislikers: model.NewUserSet(dislikers...),
	}
	return post, nil
}

// findOne は条件に一致する投稿を1件取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) findOne(ctx context.Context, where sq.Sqlizer) (*model.Post, error) {
	query, args, err := psql.Select(postColumns...).From("posts p").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("投稿取得クエリの生成に失敗しました: %w", err)
	}

	post, err := scanPost(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("投稿の取得に失敗しました", err)
	}
	return post, nil
}

// FindBySlug はスラッグで投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindBySlug(ctx context.Context, slug string) (*model.Post, error) {
	return r.findOne(ctx, sq.Eq{"p.slug": slug})
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	if !validID(id) {
		return nil, nil
	}
	return r.findOne(ctx, sq.Eq{"p.id": id})
}

// Create は投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, slug, title, content, summary, meta_description, cover_image_url,
		                    category, tags, status, moderation_reason, author_id, views,
		                    reading_time_minutes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		post.ID, post.Slug, post.Title, post.Content, nullString(post.Summary),
		nullString(post.MetaDescription), nullString(post.CoverImageURL), nullString(post.Category),
		pq.Array(post.Tags), string(post.Status), nullString(post.ModerationReason), post.AuthorID,
		post.Views, post.ReadingTimeMinutes, post.CreatedAt, post.UpdatedAt,
	)
	if isUniqueViolation(err, "posts_slug_key") {
		return model.NewSlugConflictError(post.Slug)
	}
	if err != nil {
		return storageError("投稿の作成に失敗しました", err)
	}
	return nil
}

// Update は本文・メタデータを更新する。
// 閲覧数はIncrementViewsとの競合で失われないよう、ここでは書き込まない。
func (r *PostgresPostRepo) Update(ctx context.Context, post *model.Post) error {
	if !validID(post.ID) {
		return model.NewPostNotFoundError(post.Slug)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE posts
		 SET slug = $2, title = $3, content = $4, summary = $5, meta_description = $6,
		     cover_image_url = $7, category = $8, tags = $9, reading_time_minutes = $10,
		     updated_at = $11
		 WHERE id = $1`,
		post.ID, post.Slug, post.Title, post.Content, nullString(post.Summary),
		nullString(post.MetaDescription), nullString(post.CoverImageURL), nullString(post.Category),
		pq.Array(post.Tags), post.ReadingTimeMinutes, post.UpdatedAt,
	)
	if isUniqueViolation(err, "posts_slug_key") {
		return model.NewSlugConflictError(post.Slug)
	}
	if err != nil {
		return storageError("投稿の更新に失敗しました", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.NewPostNotFoundError(post.Slug)
	}
	return nil
}

// Delete は投稿を物理削除する。
// 投稿に紐づくコメント・リアクションはクリーンアップジョブが削除する。
func (r *PostgresPostRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return storageError("投稿の削除に失敗しました", err)
	}
	return nil
}

// SetStatus はステータスとモデレーション理由を1回のUPDATEで上書きし、更新後の投稿を返す。
func (r *PostgresPostRepo) SetStatus(ctx context.Context, slug string, status model.PostStatus, reason string) (*model.Post, error) {
	selectQuery, _, err := psql.Select(postColumns...).From("updated p").ToSql()
	if err != nil {
		return nil, fmt.Errorf("ステータス更新クエリの生成に失敗しました: %w", err)
	}

	query := `WITH updated AS (
		UPDATE posts SET status = $2, moderation_reason = $3, updated_at = now()
		WHERE slug = $1
		RETURNING *
	) ` + selectQuery

	post, err := scanPost(r.db.QueryRowContext(ctx, query, slug, string(status), nullString(reason)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("投稿ステータスの更新に失敗しました", err)
	}
	return post, nil
}

// IncrementViews は閲覧数をアトミックに1増やし、更新後の値を返す。
func (r *PostgresPostRepo) IncrementViews(ctx context.Context, slug string) (int64, bool, error) {
	var views int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE posts SET views = views + 1 WHERE slug = $1 RETURNING views`,
		slug,
	).Scan(&views)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storageError("閲覧数の更新に失敗しました", err)
	}
	return views, true, nil
}

// List は条件に一致する投稿の1ページ分と総件数を返す。
func (r *PostgresPostRepo) List(ctx context.Context, filter model.PostFilter) ([]*model.Post, int, error) {
	where := sq.And{}
	if filter.Query != "" {
		pattern := likePattern(filter.Query)
		where = append(where, sq.Or{sq.ILike{"p.title": pattern}, sq.ILike{"p.content": pattern}})
	}
	if filter.Tag != "" {
		where = append(where, sq.Expr("? = ANY(p.tags)", filter.Tag))
	}
	if filter.Category != "" {
		where = append(where, sq.Eq{"p.category": filter.Category})
	}
	if filter.AuthorID != "" {
		if !validID(filter.AuthorID) {
			return []*model.Post{}, 0, nil
		}
		where = append(where, sq.Eq{"p.author_id": filter.AuthorID})
	}
	if filter.Status != "" {
		where = append(where, sq.Eq{"p.status": string(filter.Status)})
	}

	// 1. 総件数
	countQuery, countArgs, err := psql.Select("COUNT(*)").From("posts p").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("件数クエリの生成に失敗しました: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, storageError("投稿件数の取得に失敗しました", err)
	}

	// 2. ページ分の投稿
	column, ok := postSortColumns[filter.Sort.Field]
	if !ok {
		column = "p.created_at"
	}
	direction := "ASC"
	if filter.Sort.Desc {
		direction = "DESC"
	}

	builder := psql.Select(postColumns...).From("posts p").Where(where).
		OrderBy(column+" "+direction, "p.id "+direction)
	if filter.PageSize > 0 {
		builder = builder.Limit(uint64(filter.PageSize)).Offset(uint64(filter.Offset()))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("投稿一覧クエリの生成に失敗しました: %w", err)
	}

	posts, err := r.queryPosts(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// Search はタイトル・本文・カテゴリ・タグを部分一致で検索し、新しい順に返す。
func (r *PostgresPostRepo) Search(ctx context.Context, q string, limit int) ([]*model.Post, error) {
	pattern := likePattern(q)
	query, args, err := psql.Select(postColumns...).From("posts p").
		Where(sq.Or{
			sq.ILike{"p.title": pattern},
			sq.ILike{"p.content": pattern},
			sq.ILike{"p.category": pattern},
			sq.Expr("EXISTS (SELECT 1 FROM unnest(p.tags) AS t(tag) WHERE t.tag ILIKE ?)", pattern),
		}).
		OrderBy("p.created_at DESC", "p.id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("検索クエリの生成に失敗しました: %w", err)
	}
	return r.queryPosts(ctx, query, args...)
}

// queryPosts は複数行の投稿を読み取る。
func (r *PostgresPostRepo) queryPosts(ctx context.Context, query string, args ...any) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError("投稿一覧の取得に失敗しました", err)
	}
	defer rows.Close()

	posts := []*model.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, storageError("投稿の読み取りに失敗しました", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("投稿一覧の読み取りに失敗しました", err)
	}
	return posts, nil
}

// likePattern は部分一致用のLIKEパターンを生成する。ワイルドカード文字はエスケープする。
func likePattern(s string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + escaped + "%"
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
