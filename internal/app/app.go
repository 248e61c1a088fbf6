package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/blogman/internal/auth"
	"github.com/hitoshi/blogman/internal/category"
	"github.com/hitoshi/blogman/internal/comment"
	"github.com/hitoshi/blogman/internal/config"
	"github.com/hitoshi/blogman/internal/database"
	"github.com/hitoshi/blogman/internal/draft"
	"github.com/hitoshi/blogman/internal/handler"
	"github.com/hitoshi/blogman/internal/logger"
	"github.com/hitoshi/blogman/internal/metrics"
	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/notification"
	"github.com/hitoshi/blogman/internal/post"
	"github.com/hitoshi/blogman/internal/reaction"
	"github.com/hitoshi/blogman/internal/render"
	"github.com/hitoshi/blogman/internal/repository"
	"github.com/hitoshi/blogman/internal/repository/memory"
	"github.com/hitoshi/blogman/internal/security"
	"github.com/hitoshi/blogman/internal/syndication"
	"github.com/hitoshi/blogman/internal/user"
	"github.com/hitoshi/blogman/internal/worker/cleanup"
	"github.com/hitoshi/blogman/internal/workflow"
)

// Init はアプリケーションの初期化を行う。
// .envがあれば環境変数に読み込み、JSON構造化ログをセットアップしてからConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envの読み込み（既存の環境変数は上書きしない）
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("storage", cfg.StorageBackend),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// backend はストレージバックエンドごとのリポジトリ群。
type backend struct {
	users         repository.UserRepository
	identities    repository.IdentityRepository
	sessions      repository.SessionRepository
	posts         repository.PostRepository
	comments      repository.CommentRepository
	reactions     repository.ReactionRepository
	notifications repository.NotificationRepository
	categories    repository.CategoryRepository

	// health はnilの場合、ヘルスチェックは常に成功する。
	health handler.HealthChecker
	close  func() error
}

// openBackend は設定に応じてPostgreSQLまたはインメモリのリポジトリを構築する。
func openBackend(cfg *config.Config) (*backend, error) {
	if cfg.StorageBackend == config.StorageMemory {
		slog.Warn("using in-memory storage; data is lost on restart")
		return newMemoryBackend(memory.New()), nil
	}

	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &backend{
		users:         repository.NewPostgresUserRepo(db),
		identities:    repository.NewPostgresIdentityRepo(db),
		sessions:      repository.NewPostgresSessionRepo(db),
		posts:         repository.NewPostgresPostRepo(db),
		comments:      repository.NewPostgresCommentRepo(db),
		reactions:     repository.NewPostgresReactionRepo(db),
		notifications: repository.NewPostgresNotificationRepo(db),
		categories:    repository.NewPostgresCategoryRepo(db),
		health:        db,
		close:         db.Close,
	}, nil
}

func newMemoryBackend(store *memory.Store) *backend {
	return &backend{
		users:         store.Users(),
		identities:    store.Identities(),
		sessions:      store.Sessions(),
		posts:         store.Posts(),
		comments:      store.Comments(),
		reactions:     store.Reactions(),
		notifications: store.Notifications(),
		categories:    store.Categories(),
		close:         func() error { return nil },
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	return db, nil
}

// server はルーターと、シャットダウン時に停止が必要なリソース。
type server struct {
	router      http.Handler
	rateLimiter *middleware.RateLimiter
}

// newServer はリポジトリ群から全依存関係をワイヤリングしてルーターを構築する。
func newServer(ctx context.Context, cfg *config.Config, b *backend) (*server, error) {
	// 1. 下書き生成（GEMINI_API_KEY未設定の場合は常にUnavailable）
	var completer draft.Completer
	if cfg.GeminiAPIKey != "" {
		gemini, err := draft.NewGeminiCompleter(ctx, draft.GeminiConfig{
			APIKey:            cfg.GeminiAPIKey,
			Model:             cfg.GeminiModel,
			RequestsPerMinute: cfg.DraftRequestsPerMinute,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		completer = draft.NewRetryingCompleter(gemini, draft.DefaultRetryConfig())
	} else {
		slog.Warn("GEMINI_API_KEY is not set; draft generation is disabled")
	}

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. ドメインサービス
	coordinator := workflow.NewCoordinator(workflow.Services{
		Posts:         post.NewService(b.posts, post.ServiceConfig{MaxPageSize: cfg.PostsMaxPageSize}),
		Comments:      comment.NewService(b.comments),
		Reactions:     reaction.NewLedger(b.reactions),
		Notifications: notification.NewService(b.notifications, notification.ServiceConfig{ListLimit: cfg.NotificationListLimit}),
		Categories:    category.NewService(b.categories),
		Drafts:        draft.NewGenerator(completer),
		Users:         user.NewService(b.users),
	}, collector)

	// 4. 認証
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, b.users, b.identities, b.sessions,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge, AdminEmails: cfg.AdminEmails},
	)

	// 5. 表示・配信
	renderer := render.NewRenderer(security.NewRenderedHTMLPolicy())
	rss := syndication.NewRSSBuilder(syndication.Config{
		Title:       cfg.FeedTitle,
		Description: cfg.FeedDescription,
		BaseURL:     cfg.BaseURL,
	}, renderer)

	// 6. ルーター
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitWrite),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		Services: coordinator,
		Renderer: renderer,
		Feed:     rss,

		Logger:         slog.Default(),
		HealthChecker:  b.health,
		MetricsHandler: metrics.Handler(registry),
	})

	return &server{router: router, rateLimiter: rateLimiter}, nil
}

// runServe はAPIサーバーモードで起動する。
// ストレージを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	srv, err := newServer(context.Background(), cfg, b)
	if err != nil {
		return err
	}
	defer srv.rateLimiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、クリーンアップジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.StorageBackend != config.StoragePostgres {
		return fmt.Errorf("worker requires STORAGE_BACKEND=%s", config.StoragePostgres)
	}

	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())
	cleanupJob.NotificationRetentionDays = cfg.NotificationRetentionDays

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Int("notification_retention_days", cfg.NotificationRetentionDays),
	)

	// ctxが終了するまでブロックする
	cleanupJob.RunPeriodically(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.StorageBackend != config.StoragePostgres {
		return fmt.Errorf("migrate requires STORAGE_BACKEND=%s", config.StoragePostgres)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
