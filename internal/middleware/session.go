// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/linkpage/internal/model"
	"github.com/hitoshi/linkpage/internal/reqcache"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionStateContextKey はリクエストコンテキストにセッション状態を格納するためのキー。
var sessionStateContextKey = contextKey("session_state")

// SessionStateResolver はセッションIDからセッション状態を解決するインターフェース。
// auth.Serviceが実装する。
type SessionStateResolver interface {
	CurrentState(ctx context.Context, sessionID string) (*model.SessionState, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効なセッションがあればセッション状態をリクエストコンテキストに注入する。
// セッションが無い、または無効なリクエストはそのまま次に渡す。
func NewSessionMiddleware(resolver SessionStateResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			state, err := reqcache.Load(ctx, "session:"+cookie.Value, func(ctx context.Context) (*model.SessionState, error) {
				return resolver.CurrentState(ctx, cookie.Value)
			})
			if err != nil {
				slog.ErrorContext(ctx, "failed to resolve session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if state == nil {
				next.ServeHTTP(w, r)
				return
			}

			setLoggedUserID(ctx, state.UserID())
			next.ServeHTTP(w, r.WithContext(ContextWithSessionState(ctx, state)))
		})
	}
}

// NewRequireSessionMiddleware はセッションを必須とするミドルウェアを返す。
// /api/ 配下は401のJSONを返し、それ以外はサインイン画面へリダイレクトする。
// GETの場合は元のURLをreturn_toに載せる。
func NewRequireSessionMiddleware(signInPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if StateFromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}

			if strings.HasPrefix(r.URL.Path, "/api/") {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			target := signInPath
			if r.Method == http.MethodGet {
				target += "?return_to=" + url.QueryEscape(r.URL.RequestURI())
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
		})
	}
}

// StateFromContext はリクエストコンテキストからセッション状態を取得する。
// 未ログインの場合はnilを返す。
func StateFromContext(ctx context.Context) *model.SessionState {
	state, _ := ctx.Value(sessionStateContextKey).(*model.SessionState)
	return state
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアで状態が注入されたリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID := StateFromContext(ctx).UserID()
	if userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithSessionState はコンテキストにセッション状態を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSessionState(ctx context.Context, state *model.SessionState) context.Context {
	return context.WithValue(ctx, sessionStateContextKey, state)
}
