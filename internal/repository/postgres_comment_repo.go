package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/hitoshi/blogman/internal/model"
)

// commentSelect はコメント取得のSELECT句。いいね・よくないねはreactionsテーブルから集約する。
var commentSelect = `SELECT c.id, c.post_id, c.parent_id, c.author_id, c.content, c.status,
       c.created_at, c.updated_at, ` +
	reactionAggregate("comment", "c.id", model.ReactionLike) + `, ` +
	reactionAggregate("comment", "c.id", model.ReactionDislike)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// scanComment は1行分のコメントを読み取る。
func scanComment(row rowScanner) (*model.Comment, error) {
	c := &model.Comment{}
	var parentID sql.NullString
	var status string
	var likers, dislikers []string

	err := row.Scan(
		&c.ID, &c.PostID, &parentID, &c.AuthorID, &c.Content, &status,
		&c.CreatedAt, &c.UpdatedAt, pq.Array(&likers), pq.Array(&dislikers),
	)
	if err != nil {
		return nil, err
	}
	c.ParentID = nullStringValue(parentID)
	c.Status = model.CommentStatus(status)
	c.Reactions = model.Reactions{
		Likers:    model.NewUserSet(likers...),
		Dislikers: model.NewUserSet(dislikers...),
	}
	return c, nil
}

// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
func (r *PostgresCommentRepo) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	if !validID(id) {
		return nil, nil
	}
	c, err := scanComment(r.db.QueryRowContext(ctx, commentSelect+` FROM comments c WHERE c.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("コメントの取得に失敗しました", err)
	}
	return c, nil
}

// Create はコメントを作成する。
func (r *PostgresCommentRepo) Create(ctx context.Context, c *model.Comment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO comments (id, post_id, parent_id, author_id, content, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.PostID, nullString(c.ParentID), c.AuthorID, c.Content, string(c.Status),
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return storageError("コメントの作成に失敗しました", err)
	}
	return nil
}

// ListByPost は投稿の全コメントを作成順に返す。
// 作成日時が同じ場合はIDで順序を固定する。
func (r *PostgresCommentRepo) ListByPost(ctx context.Context, postID string) ([]*model.Comment, error) {
	if !validID(postID) {
		return []*model.Comment{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		commentSelect+` FROM comments c WHERE c.post_id = $1 ORDER BY c.created_at ASC, c.id ASC`,
		postID,
	)
	if err != nil {
		return nil, storageError("コメント一覧の取得に失敗しました", err)
	}
	defer rows.Close()

	comments := []*model.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, storageError("コメントの読み取りに失敗しました", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("コメント一覧の読み取りに失敗しました", err)
	}
	return comments, nil
}

// SetStatus はコメントの表示状態を更新し、更新後のコメントを返す。
func (r *PostgresCommentRepo) SetStatus(ctx context.Context, id string, status model.CommentStatus) (*model.Comment, error) {
	if !validID(id) {
		return nil, nil
	}
	query := `WITH updated AS (
		UPDATE comments SET status = $2, updated_at = now() WHERE id = $1 RETURNING *
	) ` + commentSelect + ` FROM updated c`

	c, err := scanComment(r.db.QueryRowContext(ctx, query, id, string(status)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("コメントステータスの更新に失敗しました", err)
	}
	return c, nil
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
