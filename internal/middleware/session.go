// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/blogman/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// actorContextKey はリクエストコンテキストに利用者情報を格納するためのキー。
var actorContextKey = contextKey("actor")

// ActorResolver はセッションIDから利用者（IDとロール）を解決するインターフェース。
// auth.Serviceが実装する。
type ActorResolver interface {
	// ResolveActor は有効なセッションに対応する利用者を返す。
	// セッションが存在しないか期限切れの場合はnilを返す。
	ResolveActor(ctx context.Context, sessionID string) (*model.Actor, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 利用者情報をリクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストには401を返す。
func NewSessionMiddleware(resolver ActorResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := resolveFromCookie(r, resolver)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), *actor)))
		})
	}
}

// NewOptionalSessionMiddleware はセッションがあれば利用者情報を注入し、
// なければそのまま次に渡すミドルウェアを返す。公開エンドポイント向け。
func NewOptionalSessionMiddleware(resolver ActorResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if actor, ok := resolveFromCookie(r, resolver); ok {
				r = r.WithContext(ContextWithActor(r.Context(), *actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func resolveFromCookie(r *http.Request, resolver ActorResolver) (*model.Actor, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}

	actor, err := resolver.ResolveActor(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to resolve session",
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	if actor == nil || !actor.Authenticated() {
		return nil, false
	}
	return actor, true
}

// ActorFromContext はリクエストコンテキストから利用者情報を取得する。
// 未認証の場合はゼロ値とfalseを返す。
func ActorFromContext(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(model.Actor)
	if !ok || !actor.Authenticated() {
		return model.Actor{}, false
	}
	return actor, true
}

// ContextWithActor はコンテキストに利用者情報を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}
