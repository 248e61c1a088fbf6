// Package workflow は投稿・コメント・リアクション・通知の各サービスを束ね、
// 認可チェック付きの操作として公開する。
//
// 各操作は「状態を変更し、その後に通知を作成する」の2段階で行う。
// 通知の作成に失敗しても、先に成功した変更は取り消さず呼び出し元にも成功を返す。
package workflow

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hitoshi/blogman/internal/category"
	"github.com/hitoshi/blogman/internal/comment"
	"github.com/hitoshi/blogman/internal/draft"
	"github.com/hitoshi/blogman/internal/metrics"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/notification"
	"github.com/hitoshi/blogman/internal/post"
	"github.com/hitoshi/blogman/internal/reaction"
	"github.com/hitoshi/blogman/internal/user"
)

const tracerName = "github.com/hitoshi/blogman/internal/workflow"

// FeedSize はRSSフィード用に取得する公開済み投稿の件数。
const FeedSize = 20

// Services はCoordinatorが利用するサービス群。
type Services struct {
	Posts         *post.Service
	Comments      *comment.Service
	Reactions     *reaction.Ledger
	Notifications *notification.Service
	Categories    *category.Service
	Drafts        *draft.Generator
	Users         *user.Service
}

// Coordinator は認可チェック付きの操作の入口。
// 自身は状態を持たない。
type Coordinator struct {
	posts         *post.Service
	comments      *comment.Service
	reactions     *reaction.Ledger
	notifications *notification.Service
	categories    *category.Service
	drafts        *draft.Generator
	users         *user.Service
	metrics       metrics.MetricsCollector
	tracer        trace.Tracer
}

// NewCoordinator はCoordinatorを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewCoordinator(svc Services, collector metrics.MetricsCollector) *Coordinator {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Coordinator{
		posts:         svc.Posts,
		comments:      svc.Comments,
		reactions:     svc.Reactions,
		notifications: svc.Notifications,
		categories:    svc.Categories,
		drafts:        svc.Drafts,
		users:         svc.Users,
		metrics:       collector,
		tracer:        otel.Tracer(tracerName),
	}
}

func (c *Coordinator) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "workflow."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(model.KindOf(err)))
	}
	span.End()
}

func actorAttrs(actor model.Actor) attribute.KeyValue {
	return attribute.String("actor.id", actor.ID)
}

// fanOut は通知を作成する。失敗はログとメトリクスに記録するのみで呼び出し元には返さない。
func (c *Coordinator) fanOut(ctx context.Context, typ model.NotificationType, recipient string, notify func(context.Context) (*model.Notification, error)) {
	if _, err := notify(ctx); err != nil {
		c.metrics.RecordNotificationFailure(string(typ))
		trace.SpanFromContext(ctx).AddEvent("notification fan-out failed",
			trace.WithAttributes(attribute.String("notification.type", string(typ))))
		slog.Warn("notification fan-out failed",
			slog.String("type", string(typ)),
			slog.String("recipient", recipient),
			slog.String("error", err.Error()),
		)
		return
	}
	c.metrics.RecordNotificationEmitted(string(typ))
}

// --- 投稿 ---

// CreatePost は投稿を作成する。
func (c *Coordinator) CreatePost(ctx context.Context, actor model.Actor, in post.CreateInput) (p *model.Post, err error) {
	ctx, span := c.startSpan(ctx, "CreatePost", actorAttrs(actor))
	defer func() { endSpan(span, err) }()

	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	p, err = c.posts.Create(ctx, actor.ID, in)
	if err != nil {
		return nil, err
	}
	c.metrics.RecordPostCreated()
	return p, nil
}

// GetPost はスラッグで投稿を取得する。
func (c *Coordinator) GetPost(ctx context.Context, slug string) (p *model.Post, err error) {
	ctx, span := c.startSpan(ctx, "GetPost", attribute.String("post.slug", slug))
	defer func() { endSpan(span, err) }()

	return c.posts.GetBySlug(ctx, slug)
}

// UpdatePost は投稿を部分更新する。投稿者本人か管理者のみ実行できる。
func (c *Coordinator) UpdatePost(ctx context.Context, actor model.Actor, slug string, patch model.PostPatch) (p *model.Post, err error) {
	ctx, span := c.startSpan(ctx, "UpdatePost", actorAttrs(actor), attribute.String("post.slug", slug))
	defer func() { endSpan(span, err) }()

	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	current, err := c.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !canEditPost(actor, current) {
		return nil, model.NewForbiddenError("この投稿を編集する権限がありません。")
	}
	return c.posts.Update(ctx, current, patch)
}

// DeletePost は投稿を削除する。投稿者本人か管理者のみ実行できる。
// 関連するコメント・リアクションの掃除はワーカーが行う。
func (c *Coordinator) DeletePost(ctx context.Context, actor model.Actor, slug string) (err error) {
	ctx, span := c.startSpan(ctx, "DeletePost", actorAttrs(actor), attribute.String("post.slug", slug))
	defer func() { endSpan(span, err) }()

	if err := requireAuthenticated(actor); err != nil {
		return err
	}
	current, err := c.posts.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if !canEditPost(actor, current) {
		return model.NewForbiddenError("この投稿を削除する権限がありません。")
	}
	return c.posts.Delete(ctx, current)
}

// SetPostStatus は投稿のステータスを変更し、投稿者に通知する。管理者のみ実行できる。
// 変更元のステータスは問わない。
func (c *Coordinator) SetPostStatus(ctx context.Context, actor model.Actor, slug string, status model.PostStatus, reason string) (p *model.Post, err error) {
	ctx, span := c.startSpan(ctx, "SetPostStatus", actorAttrs(actor),
		attribute.String("post.slug", slug), attribute.String("post.status", string(status)))
	defer func() { endSpan(span, err) }()

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	p, err = c.posts.SetStatus(ctx, slug, status, reason)
	if err != nil {
		return nil, err
	}
	c.metrics.RecordStatusChange(string(p.Status))

	c.fanOut(ctx, model.NotificationTypePostStatus, p.AuthorID, func(ctx context.Context) (*model.Notification, error) {
		return c.notifications.NotifyStatusChanged(ctx, p)
	})
	return p, nil
}

// IncrementViews は閲覧数を1増やす。認証不要。
func (c *Coordinator) IncrementViews(ctx context.Context, slug string) (views int64, err error) {
	ctx, span := c.startSpan(ctx, "IncrementViews", attribute.String("post.slug", slug))
	defer func() { endSpan(span, err) }()

	views, err = c.posts.IncrementViews(ctx, slug)
	if err != nil {
		return 0, err
	}
	c.metrics.RecordPostView()
	return views, nil
}

// ListPosts は条件に一致する投稿を1ページ分返す。
func (c *Coordinator) ListPosts(ctx context.Context, q post.ListQuery) (result *post.ListResult, err error) {
	ctx, span := c.startSpan(ctx, "ListPosts")
	defer func() { endSpan(span, err) }()

	return c.posts.List(ctx, q)
}

// ListMyPosts は利用者自身の投稿をステータスを問わず新しい順に返す。
func (c *Coordinator) ListMyPosts(ctx context.Context, actor model.Actor) (posts []*model.Post, err error) {
	ctx, span := c.startSpan(ctx, "ListMyPosts", actorAttrs(actor))
	defer func() { endSpan(span, err) }()

	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	return c.posts.ListByAuthor(ctx, actor.ID)
}

// SearchPosts は投稿を部分一致で検索する。
func (c *Coordinator) SearchPosts(ctx context.Context, query string) (posts []*model.Post, err error) {
	ctx, span := c.startSpan(ctx, "SearchPosts")
	defer func() { endSpan(span, err) }()

	return c.posts.Search(ctx, query)
}

// PublishedFeed はRSSフィード用に公開済みの投稿を新しい順に返す。
func (c *Coordinator) PublishedFeed(ctx context.Context) (posts []*model.Post, err error) {
	ctx, span := c.startSpan(ctx, "PublishedFeed")
	defer func() { endSpan(span, err) }()

	result, err := c.posts.List(ctx, post.ListQuery{
		Status:   string(model.PostStatusPublished),
		PageSize: FeedSize,
	})
	if err != nil {
		return nil, err
	}
	return result.Posts, nil
}

// ReactToPost は投稿にリアクションする。
func (c *Coordinator) ReactToPost(ctx context.Context, actor model.Actor, slug string, action model.ReactionAction) (p *model.Post, err error) {
	ctx, span := c.startSpan(ctx, "ReactToPost", actorAttrs(actor),
		attribute.String("post.slug", slug), attribute.String("reaction.action", string(action)))
	defer func() { endSpan(span, err) }()

	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	p, err = c.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := c.reactions.Toggle(ctx, p, actor.ID, action); err != nil {
		return nil, err
	}
	c.metrics.RecordReaction(string(model.ReactionTargetPost), string(action))
	return p, nil
}

// --- コメント ---

// AddComment は投稿にコメントを追加し、投稿者に通知する。
func (c *Coordinator) AddComment(ctx context.Context, actor model.Actor, postID, content, parentID string) (cm *model.Comment, err error) {
	ctx, span := c.startSpan(ctx, "AddComment", actorAttrs(actor), attribute.String("post.id", postID))
	defer func() { endSpan(span, err) }()

	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	p, err := c.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	cm, err = c.comments.Add(ctx, p, actor.ID, content, parentID)
	if err != nil {
		return nil, err
	}
	c.metrics.RecordCommentAdded()

	c.fanOut(ctx, model.NotificationTypeComment, p.AuthorID, func(ctx context.Context) (*model.Notification, error) {
		return c.notifications.NotifyCommentAdded(ctx, p)
	})
	return cm, nil
}

// ListComments は投稿の全コメントを作成順に返す。非表示のコメントも含む。
// 投稿が存在しない場合は空のスライスを返す。
func (c *Coordinator) ListComments(ctx context.Context, postID string) (comments []*model.Comment, err error) {
	ctx, span := c.startSpan(ctx, "ListComments", attribute.String("post.id", postID))
	defer func() { endSpan(span, err) }()

	if _, err := c.posts.GetByID(ctx, postID); err != nil {
		if model.IsKind(err, model.KindNotFound) {
			return []*model.Comment{}, nil
		}
		return nil, err
	}
	return c.comments.List(ctx, postID)
}

// ModerateComment はコメントの表示状態を変更する。管理者のみ実行できる。
func (c *Coordinator) ModerateComment(ctx context.Context, actor model.Actor, commentID string, status model.CommentStatus) (cm *model.Comment, err error) {
	ctx, span := c.startSpan(ctx, "ModerateComment", actorAttrs(actor), attribute.String("comment.id", commentID))
	defer func() { endSpan(span, err) }()

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return c.comments.SetStatus(ctx, commentID, status)
}

// ReactToComment はコメントにリアクションする。
func (c *Coordinator) ReactToComment(ctx context.Context, actor model.Actor, commentID string, action model.ReactionAction) (cm *model.Comment, err error) {
	ctx, span := c.startSpan(ctx, "ReactToComment", actorAttrs(actor),
		attribute.String("comment.id", commentID), attribute.String("reaction.action", string(action)))
	defer func() { endSpan(span, err) }()

	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	cm, err = c.comments.Get(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if err := c.reactions.Toggle(ctx, cm, actor.ID, action); err != nil {
		return nil, err
	}
	c.metrics.RecordReaction(string(model.ReactionTargetComment), string(action))
	return cm, nil
}

// --- 通知 ---

// ListNotifications は利用者宛ての通知を新しい順に返す。
func (c *Coordinator) ListNotifications(ctx context.Context, actor model.Actor) (list []*model.Notification, err error) {
	ctx, span := c.startSpan(ctx, "ListNotifications", actorAttrs(actor))
	defer func() { endSpan(span, err) }()

	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	return c.notifications.List(ctx, actor.ID)
}

// MarkNotificationRead は通知を既読にする。宛先本人のみ実行できる。
func (c *Coordinator) MarkNotificationRead(ctx context.Context, actor model.Actor, notificationID string) (n *model.Notification, err error) {
	ctx, span := c.startSpan(ctx, "MarkNotificationRead", actorAttrs(actor), attribute.String("notification.id", notificationID))
	defer func() { endSpan(span, err) }()

	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	return c.notifications.MarkRead(ctx, notificationID, actor.ID)
}

// --- 下書き生成 ---

// GenerateDraft はプロンプトから下書きを生成し、完了を利用者に通知する。
func (c *Coordinator) GenerateDraft(ctx context.Context, actor model.Actor, prompt string) (d *draft.Draft, err error) {
	ctx, span := c.startSpan(ctx, "GenerateDraft", actorAttrs(actor))
	defer func() { endSpan(span, err) }()

	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}

	start := time.Now()
	d, err = c.drafts.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	c.metrics.RecordDraftLatency(time.Since(start))

	c.fanOut(ctx, model.NotificationTypeAIUpdate, actor.ID, func(ctx context.Context) (*model.Notification, error) {
		return c.notifications.NotifyDraftGenerated(ctx, actor.ID)
	})
	return d, nil
}

// --- ユーザー ---

// GetUser は公開プロフィールとしてユーザーを返す。認証不要。
func (c *Coordinator) GetUser(ctx context.Context, id string) (u *model.User, err error) {
	ctx, span := c.startSpan(ctx, "GetUser", attribute.String("user.id", id))
	defer func() { endSpan(span, err) }()

	if c.users == nil {
		return nil, model.NewUserNotFoundError(id)
	}
	return c.users.Get(ctx, id)
}

// AuthorProfiles は投稿一覧・詳細に付与する投稿者情報を返す。
func (c *Coordinator) AuthorProfiles(ctx context.Context, authorIDs []string) (profiles map[string]*model.User, err error) {
	ctx, span := c.startSpan(ctx, "AuthorProfiles", attribute.Int("author.count", len(authorIDs)))
	defer func() { endSpan(span, err) }()

	if c.users == nil {
		return map[string]*model.User{}, nil
	}
	return c.users.Profiles(ctx, authorIDs)
}

// --- カテゴリ ---

// ListCategories は全カテゴリを返す。認証不要。
func (c *Coordinator) ListCategories(ctx context.Context) (list []*model.Category, err error) {
	ctx, span := c.startSpan(ctx, "ListCategories")
	defer func() { endSpan(span, err) }()

	return c.categories.List(ctx)
}

// CreateCategory はカテゴリを作成する。管理者のみ実行できる。
func (c *Coordinator) CreateCategory(ctx context.Context, actor model.Actor, name, description string) (cat *model.Category, err error) {
	ctx, span := c.startSpan(ctx, "CreateCategory", actorAttrs(actor))
	defer func() { endSpan(span, err) }()

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return c.categories.Create(ctx, name, description)
}

// UpdateCategory はカテゴリを更新する。管理者のみ実行できる。
func (c *Coordinator) UpdateCategory(ctx context.Context, actor model.Actor, id string, name, description *string) (cat *model.Category, err error) {
	ctx, span := c.startSpan(ctx, "UpdateCategory", actorAttrs(actor), attribute.String("category.id", id))
	defer func() { endSpan(span, err) }()

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return c.categories.Update(ctx, id, name, description)
}

// DeleteCategory はカテゴリを削除する。管理者のみ実行できる。
func (c *Coordinator) DeleteCategory(ctx context.Context, actor model.Actor, id string) (err error) {
	ctx, span := c.startSpan(ctx, "DeleteCategory", actorAttrs(actor), attribute.String("category.id", id))
	defer func() { endSpan(span, err) }()

	if err := requireAdmin(actor); err != nil {
		return err
	}
	return c.categories.Delete(ctx, id)
}
