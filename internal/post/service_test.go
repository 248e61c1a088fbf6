package post

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository/memory"
)

// --- テスト用モック ---

// mockPostRepo はインメモリ実装を土台に、一部メソッドだけ差し替えられるPostRepositoryモック。
type mockPostRepo struct {
	*memory.PostRepo
	createFn func(ctx context.Context, p *model.Post) error
	listFn   func(ctx context.Context, filter model.PostFilter) ([]*model.Post, int, error)
}

func newMockPostRepo() *mockPostRepo {
	return &mockPostRepo{PostRepo: memory.New().Posts()}
}

func (m *mockPostRepo) Create(ctx context.Context, p *model.Post) error {
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	return m.PostRepo.Create(ctx, p)
}

func (m *mockPostRepo) List(ctx context.Context, filter model.PostFilter) ([]*model.Post, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return m.PostRepo.List(ctx, filter)
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

// --- ReadingTime ---

func TestReadingTime(t *testing.T) {
	tests := []struct {
		words int
		want  int
	}{
		{0, 1},
		{1, 1},
		{200, 1},
		{201, 2},
		{450, 3},
		{1000, 5},
	}
	for _, tt := range tests {
		if got := ReadingTime(words(tt.words)); got != tt.want {
			t.Errorf("ReadingTime(%d words) = %d, want %d", tt.words, got, tt.want)
		}
	}
}

// --- Create ---

func TestService_Create_ComputesSlugAndReadingTime(t *testing.T) {
	svc := NewService(newMockPostRepo(), ServiceConfig{})

	p, err := svc.Create(context.Background(), "author-1", CreateInput{
		Title:   "My First Post",
		Content: words(450),
		Tags:    []string{" go ", "", "web"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.Slug != "my-first-post" {
		t.Errorf("Slug = %q, want %q", p.Slug, "my-first-post")
	}
	if p.ReadingTimeMinutes != 3 {
		t.Errorf("ReadingTimeMinutes = %d, want 3", p.ReadingTimeMinutes)
	}
	if p.Status != model.PostStatusDraft {
		t.Errorf("Status = %q, want draft", p.Status)
	}
	if p.AuthorID != "author-1" {
		t.Errorf("AuthorID = %q, want author-1", p.AuthorID)
	}
	if len(p.Tags) != 2 || p.Tags[0] != "go" || p.Tags[1] != "web" {
		t.Errorf("Tags = %v, want [go web]", p.Tags)
	}
}

// 作成時のステータスは任意に指定できる
func TestService_Create_RequestedStatus(t *testing.T) {
	svc := NewService(newMockPostRepo(), ServiceConfig{})

	p, err := svc.Create(context.Background(), "a", CreateInput{
		Title: "Seeded", Content: "x", Status: model.PostStatusPublished,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.Status != model.PostStatusPublished {
		t.Errorf("Status = %q, want published", p.Status)
	}
}

func TestService_Create_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		in   CreateInput
	}{
		{"タイトルなし", CreateInput{Title: "", Content: "body"}},
		{"空白のみのタイトル", CreateInput{Title: "   ", Content: "body"}},
		{"本文なし", CreateInput{Title: "Title", Content: ""}},
		{"空白のみの本文", CreateInput{Title: "Title", Content: " \n\t"}},
		{"不正なステータス", CreateInput{Title: "Title", Content: "body", Status: "archived"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockPostRepo()
			created := false
			repo.createFn = func(ctx context.Context, p *model.Post) error {
				created = true
				return nil
			}

			_, err := NewService(repo, ServiceConfig{}).Create(context.Background(), "a", tt.in)
			if !model.IsKind(err, model.KindValidation) {
				t.Errorf("error = %v, want validation error", err)
			}
			if created {
				t.Error("no post should be persisted on validation failure")
			}
		})
	}
}

func TestService_Create_SlugConflict(t *testing.T) {
	svc := NewService(newMockPostRepo(), ServiceConfig{})
	ctx := context.Background()

	if _, err := svc.Create(ctx, "a", CreateInput{Title: "Same Title", Content: "x"}); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}
	_, err := svc.Create(ctx, "b", CreateInput{Title: "Same  Title!", Content: "y"})
	if !model.IsKind(err, model.KindConflict) {
		t.Errorf("error = %v, want conflict", err)
	}
}

func TestService_Create_StorageErrorPropagates(t *testing.T) {
	repo := newMockPostRepo()
	repo.createFn = func(ctx context.Context, p *model.Post) error {
		return model.NewStorageError("投稿の作成に失敗しました", context.DeadlineExceeded)
	}

	_, err := NewService(repo, ServiceConfig{}).Create(context.Background(), "a", CreateInput{Title: "T", Content: "c"})
	if !model.IsKind(err, model.KindStorage) {
		t.Errorf("error = %v, want storage error", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("storage error should wrap the deadline")
	}
}

// --- Update ---

func TestService_Update_TitleChangesSlug(t *testing.T) {
	svc := NewService(newMockPostRepo(), ServiceConfig{})
	ctx := context.Background()
	p, _ := svc.Create(ctx, "a", CreateInput{Title: "Old Title", Content: "one two"})

	title := "Brand New Title"
	updated, err := svc.Update(ctx, p, model.PostPatch{Title: &title})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Slug != "brand-new-title" {
		t.Errorf("Slug = %q, want brand-new-title", updated.Slug)
	}
	if updated.ReadingTimeMinutes != p.ReadingTimeMinutes {
		t.Error("reading time should not change when only the title changes")
	}

	if _, err := svc.GetBySlug(ctx, "old-title"); !model.IsKind(err, model.KindNotFound) {
		t.Errorf("old slug lookup error = %v, want not found", err)
	}
	if _, err := svc.GetBySlug(ctx, "brand-new-title"); err != nil {
		t.Errorf("new slug lookup error = %v", err)
	}
}

func TestService_Update_ContentRecomputesReadingTime(t *testing.T) {
	svc := NewService(newMockPostRepo(), ServiceConfig{})
	ctx := context.Background()
	p, _ := svc.Create(ctx, "a", CreateInput{Title: "Essay", Content: "short"})

	content := words(450)
	updated, err := svc.Update(ctx, p, model.PostPatch{Content: &content})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.ReadingTimeMinutes != 3 {
		t.Errorf("ReadingTimeMinutes = %d, want 3", updated.ReadingTimeMinutes)
	}
	if updated.Slug != "essay" {
		t.Errorf("Slug = %q, want essay", updated.Slug)
	}
}

// 指定されていないフィールドは変更されない
func TestService_Update_PartialPatch(t *testing.T) {
	svc := NewService(newMockPostRepo(), ServiceConfig{})
	ctx := context.Background()
	p, _ := svc.Create(ctx, "a", CreateInput{
		Title: "Keep", Content: "body", Summary: "sum", Category: "tech", Tags: []string{"go"},
	})

	summary := "new summary"
	updated, err := svc.Update(ctx, p, model.PostPatch{Summary: &summary})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Summary != "new summary" {
		t.Errorf("Summary = %q", updated.Summary)
	}
	if updated.Title != "Keep" || updated.Content != "body" || updated.Category != "tech" || len(updated.Tags) != 1 {
		t.Errorf("unpatched fields changed: %+v", updated)
	}
}

func TestService_Update_DeletedPostIsNotFound(t *testing.T) {
	svc := NewService(newMockPostRepo(), ServiceConfig{})
	ctx := context.Background()
	p, _ := svc.Create(ctx, "a", CreateInput{Title: "Soon Gone", Content: "body"})
	if err := svc.Delete(ctx, p); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	summary := "late edit"
	if _, err := svc.Update(ctx, p, model.PostPatch{Summary: &summary}); !model.IsKind(err, model.KindNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestService_Create_TitleWithoutASCIIUsesIDSlug(t *testing.T) {
	svc := NewService(newMockPostRepo(), ServiceConfig{})
	ctx := context.Background()

	p, err := svc.Create(ctx, "a", CreateInput{Title: "日本語", Content: "本文"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if want := "post-" + p.ID[:8]; p.Slug != want {
		t.Errorf("Slug = %q, want %q", p.Slug, want)
	}

	// 英数字を含むタイトルに変更すると通常のスラッグに戻る
	title := "Japanese Notes"
	updated, err := svc.Update(ctx, p, model.PostPatch{Title: &title})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Slug != "japanese-notes" {
		t.Errorf("Slug = %q, want japanese-notes", updated.Slug)
	}
}

func TestService_Update_EmptyTitleRejected(t *testing.T) {
	svc := NewService(newMockPostRepo(), ServiceConfig{})
	ctx := context.Background()
	p, _ := svc.Create(ctx, "a", CreateInput{Title: "Title", Content: "body"})

	empty := ""
	if _, err := svc.Update(ctx, p, model.PostPatch{Title: &empty}); !model.IsKind(err, model.KindValidation) {
		t.Errorf("error = %v, want validation", err)
	}
	if _, err := svc.Update(ctx, p, model.PostPatch{Content: &empty}); !model.IsKind(err, model.KindValidation) {
		t.Errorf("error = %v, want validation", err)
	}
}

// --- SetStatus / IncrementViews ---

// ステータスは遷移元に関わらず任意の値に変更できる
func TestService_SetStatus_AnyToAny(t *testing.T) {
	svc := NewService(newMockPostRepo(), ServiceConfig{})
	ctx := context.Background()
	p, _ := svc.Create(ctx, "a", CreateInput{Title: "Moderated", Content: "x", Status: model.PostStatusPublished})

	sequence := []model.PostStatus{
		model.PostStatusDraft, model.PostStatusRejected, model.PostStatusPublished, model.PostStatusPending,
	}
	for _, status := range sequence {
		got, err := svc.SetStatus(ctx, p.Slug, status, "")
		if err != nil {
			t.Fatalf("SetStatus(%s) error = %v", status, err)
		}
		if got.Status != status {
			t.Errorf("Status = %q, want %q", got.Status, status)
		}
	}
}

func TestService_SetStatus_ReasonAndErrors(t *testing.T) {
	svc := NewService(newMockPostRepo(), ServiceConfig{})
	ctx := context.Background()
	p, _ := svc.Create(ctx, "a", CreateInput{Title: "Reasoned", Content: "x"})

	got, err := svc.SetStatus(ctx, p.Slug, model.PostStatusRejected, "Off-topic")
	if err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if got.ModerationReason != "Off-topic" {
		t.Errorf("ModerationReason = %q, want Off-topic", got.ModerationReason)
	}

	if _, err := svc.SetStatus(ctx, p.Slug, "archived", ""); !model.IsKind(err, model.KindValidation) {
		t.Errorf("invalid status error = %v, want validation", err)
	}
	if _, err := svc.SetStatus(ctx, "missing", model.PostStatusDraft, ""); !model.IsKind(err, model.KindNotFound) {
		t.Errorf("unknown slug error = %v, want not found", err)
	}
}

func TestService_IncrementViews(t *testing.T) {
	svc := NewService(newMockPostRepo(), ServiceConfig{})
	ctx := context.Background()
	p, _ := svc.Create(ctx, "a", CreateInput{Title: "Viewed", Content: "x"})

	for i := int64(1); i <= 3; i++ {
		views, err := svc.IncrementViews(ctx, p.Slug)
		if err != nil {
			t.Fatalf("IncrementViews() error = %v", err)
		}
		if views != i {
			t.Errorf("views = %d, want %d", views, i)
		}
	}

	if _, err := svc.IncrementViews(ctx, "missing"); !model.IsKind(err, model.KindNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
}

// --- List / Search ---

func TestService_List_DefaultsAndClamp(t *testing.T) {
	repo := newMockPostRepo()
	var captured model.PostFilter
	repo.listFn = func(ctx context.Context, filter model.PostFilter) ([]*model.Post, int, error) {
		captured = filter
		return []*model.Post{}, 0, nil
	}
	svc := NewService(repo, ServiceConfig{MaxPageSize: 50})

	res, err := svc.List(context.Background(), ListQuery{Page: 0, PageSize: 0})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Page != 1 || res.PageSize != DefaultPageSize {
		t.Errorf("page/pageSize = %d/%d, want 1/%d", res.Page, res.PageSize, DefaultPageSize)
	}
	if captured.Sort.Field != model.PostSortCreatedAt || !captured.Sort.Desc {
		t.Errorf("default sort = %+v, want createdAt desc", captured.Sort)
	}

	res, err = svc.List(context.Background(), ListQuery{PageSize: 1000})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.PageSize != 50 {
		t.Errorf("pageSize = %d, want clamp to 50", res.PageSize)
	}
}

func TestService_List_InvalidInput(t *testing.T) {
	svc := NewService(newMockPostRepo(), ServiceConfig{})

	if _, err := svc.List(context.Background(), ListQuery{Sort: "-password"}); !model.IsKind(err, model.KindValidation) {
		t.Errorf("invalid sort error = %v, want validation", err)
	}
	if _, err := svc.List(context.Background(), ListQuery{Status: "archived"}); !model.IsKind(err, model.KindValidation) {
		t.Errorf("invalid status error = %v, want validation", err)
	}
}

func TestService_List_FiltersByStatusAndTag(t *testing.T) {
	svc := NewService(newMockPostRepo(), ServiceConfig{})
	ctx := context.Background()
	svc.Create(ctx, "a", CreateInput{Title: "Go Tips", Content: "x", Tags: []string{"go"}, Status: model.PostStatusPublished})
	svc.Create(ctx, "a", CreateInput{Title: "Go Draft", Content: "x", Tags: []string{"go"}})
	svc.Create(ctx, "b", CreateInput{Title: "Rust Tips", Content: "x", Tags: []string{"rust"}, Status: model.PostStatusPublished})

	res, err := svc.List(ctx, ListQuery{Tag: "go", Status: "published"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 1 || res.Posts[0].Slug != "go-tips" {
		t.Errorf("Total = %d, want only go-tips", res.Total)
	}
}

func TestService_List_PageBeyondMaxOffsetRejected(t *testing.T) {
	repo := newMockPostRepo()
	called := false
	repo.listFn = func(ctx context.Context, filter model.PostFilter) ([]*model.Post, int, error) {
		called = true
		return nil, 0, nil
	}
	svc := NewService(repo, ServiceConfig{})

	tests := []struct {
		name string
		q    ListQuery
	}{
		{"オーバーフローするページ", ListQuery{Page: 1<<62 + 1, PageSize: 10}},
		{"最大値のページ", ListQuery{Page: int(^uint(0) >> 1), PageSize: 1}},
		{"上限を1件超えるページ", ListQuery{Page: MaxOffset/10 + 2, PageSize: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.List(context.Background(), tt.q)
			if !model.IsKind(err, model.KindValidation) {
				t.Errorf("error = %v, want validation", err)
			}
		})
	}
	if called {
		t.Error("repository should not be queried for an out-of-range page")
	}

	if _, err := svc.List(context.Background(), ListQuery{Page: MaxOffset/10 + 1, PageSize: 10}); err != nil {
		t.Errorf("last addressable page error = %v, want nil", err)
	}
}

func TestService_Search_EmptyQuery(t *testing.T) {
	posts, err := NewService(newMockPostRepo(), ServiceConfig{}).Search(context.Background(), "  ")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("len = %d, want 0", len(posts))
	}
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		in      string
		want    model.PostSort
		wantErr bool
	}{
		{"", model.PostSort{Field: model.PostSortCreatedAt, Desc: true}, false},
		{"views", model.PostSort{Field: model.PostSortViews}, false},
		{"-views", model.PostSort{Field: model.PostSortViews, Desc: true}, false},
		{"title", model.PostSort{Field: model.PostSortTitle}, false},
		{"-readingTimeMinutes", model.PostSort{Field: model.PostSortReadingTime, Desc: true}, false},
		{"author", model.PostSort{}, true},
	}
	for _, tt := range tests {
		got, err := ParseSort(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSort(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSort(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
