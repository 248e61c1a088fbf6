package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/blogman/internal/middleware"
)

// Services はハンドラーが利用するサービス群。workflow.Coordinatorが全てを実装する。
type Services interface {
	PostServiceInterface
	CommentServiceInterface
	NotificationServiceInterface
	DraftServiceInterface
	CategoryServiceInterface
	UserServiceInterface
	FeedSource
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメイン
	Services Services
	Renderer BodyRenderer
	Feed     FeedWriter

	// 運用
	Logger         *slog.Logger
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS
//	  /api:  OptionalSession → RateLimit(General) → [Session → CSRF]
//
// /health、/metrics、/feed.xml、/auth/* はAPIのレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CSRFConfig.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	postHandler := NewPostHandler(deps.Services, deps.Renderer)
	commentHandler := NewCommentHandler(deps.Services)
	notificationHandler := NewNotificationHandler(deps.Services)
	draftHandler := NewDraftHandler(deps.Services)
	categoryHandler := NewCategoryHandler(deps.Services)
	userHandler := NewUserHandler(deps.Services)
	feedHandler := NewFeedHandler(deps.Services, deps.Feed)

	// --- 運用・配信 ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Get("/feed.xml", feedHandler.ServeRSS)

	// --- 認証ルート（OAuthフロー） ---
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewOptionalSessionMiddleware(deps.AuthService))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

		// --- 認証不要のルート ---
		r.Get("/posts", postHandler.ListPosts)
		r.Get("/posts/{slug}", postHandler.GetPost)
		r.Post("/posts/{slug}/views", postHandler.IncrementViews)
		r.Get("/comments/{id}", commentHandler.ListComments)
		r.Get("/search", postHandler.Search)
		r.Get("/categories", categoryHandler.List)
		r.Get("/users/{id}", userHandler.Get)

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Session → CSRF
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.AuthService))
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

			write := deps.RateLimiter.WriteMiddleware()

			r.With(write).Post("/posts", postHandler.CreatePost)
			r.Put("/posts/{slug}", postHandler.UpdatePost)
			r.Delete("/posts/{slug}", postHandler.DeletePost)
			r.With(write).Post("/posts/{slug}/react", postHandler.React)
			r.Put("/posts/{slug}/status", postHandler.SetStatus)

			r.With(write).Post("/comments", commentHandler.AddComment)
			r.With(write).Post("/comments/{id}/react", commentHandler.React)
			r.Put("/comments/{id}/moderate", commentHandler.Moderate)

			r.Get("/notifications", notificationHandler.List)
			r.Put("/notifications/{id}/read", notificationHandler.MarkRead)

			r.With(write).Post("/ai/generate", draftHandler.Generate)

			r.Get("/users/me/posts", postHandler.ListMine)

			r.Post("/categories", categoryHandler.Create)
			r.Put("/categories/{id}", categoryHandler.Update)
			r.Delete("/categories/{id}", categoryHandler.Delete)
		})
	})

	return r
}
