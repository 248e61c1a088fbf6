package repository

import (
	"testing"
)

// Postgres実装が各リポジトリインターフェースを満たすことを検証
func TestPostgresRepos_ImplementInterfaces(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
	var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
	var _ PostRepository = (*PostgresPostRepo)(nil)
	var _ CommentRepository = (*PostgresCommentRepo)(nil)
	var _ ReactionRepository = (*PostgresReactionRepo)(nil)
	var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
	var _ CategoryRepository = (*PostgresCategoryRepo)(nil)
}

// コンストラクタが正しく初期化されることを検証
func TestNewPostgresRepos_Initialize(t *testing.T) {
	if NewPostgresUserRepo(nil) == nil {
		t.Fatal("expected non-nil user repo")
	}
	if NewPostgresPostRepo(nil) == nil {
		t.Fatal("expected non-nil post repo")
	}
	if NewPostgresCommentRepo(nil) == nil {
		t.Fatal("expected non-nil comment repo")
	}
	if NewPostgresReactionRepo(nil) == nil {
		t.Fatal("expected non-nil reaction repo")
	}
	if NewPostgresNotificationRepo(nil) == nil {
		t.Fatal("expected non-nil notification repo")
	}
	if NewPostgresCategoryRepo(nil) == nil {
		t.Fatal("expected non-nil category repo")
	}
}

// UUID形式でないIDはクエリを発行せずに「見つからない」扱いになることを検証
func TestPostgresRepos_InvalidIDIsNotFound(t *testing.T) {
	ctx := t.Context()

	// dbがnilでもクエリ前に返るため、パニックしないことが検証になる
	post, err := NewPostgresPostRepo(nil).FindByID(ctx, "not-a-uuid")
	if err != nil || post != nil {
		t.Errorf("FindByID(invalid) = %v, %v; want nil, nil", post, err)
	}

	comments, err := NewPostgresCommentRepo(nil).ListByPost(ctx, "not-a-uuid")
	if err != nil {
		t.Fatalf("ListByPost(invalid) error = %v", err)
	}
	if len(comments) != 0 {
		t.Errorf("ListByPost(invalid) len = %d, want 0", len(comments))
	}

	n, err := NewPostgresNotificationRepo(nil).FindByID(ctx, "42")
	if err != nil || n != nil {
		t.Errorf("FindByID(invalid) = %v, %v; want nil, nil", n, err)
	}
}

func TestLikePattern_EscapesWildcards(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"go", "%go%"},
		{"100%", `%100\%%`},
		{"snake_case", `%snake\_case%`},
		{`a\b`, `%a\\b%`},
	}
	for _, tt := range tests {
		if got := likePattern(tt.in); got != tt.want {
			t.Errorf("likePattern(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
