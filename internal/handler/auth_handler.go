// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/linkpage/internal/auth"
	"github.com/hitoshi/linkpage/internal/middleware"
	"github.com/hitoshi/linkpage/internal/model"
	"github.com/hitoshi/linkpage/internal/redirect"
)

const (
	oauthStateCookie  = "oauth_state"
	oauthNonceCookie  = "oauth_nonce"
	returnToCookie    = "return_to"
	oauthCookieMaxAge = 600 // 10分
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state, nonce string) string
	HandleCallback(ctx context.Context, code, nonce string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	AppOrigin     *url.URL // Refererから戻り先を求めるときの自オリジン
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOIDCサインイン関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Login はOIDCフローを開始する。
// GET /auth/login?return_to=/path
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := auth.NewRandomToken()
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	nonce, err := auth.NewRandomToken()
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to generate oauth nonce", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	returnTo := redirect.ResolveReturnPath(r.URL.Query().Get("return_to"), r.Header, h.config.AppOrigin)

	h.setFlowCookie(w, oauthStateCookie, state, oauthCookieMaxAge)
	h.setFlowCookie(w, oauthNonceCookie, nonce, oauthCookieMaxAge)
	h.setFlowCookie(w, returnToCookie, url.QueryEscape(returnTo), oauthCookieMaxAge)

	http.Redirect(w, r, h.service.GetLoginURL(state, nonce), http.StatusFound)
}

// Callback はOIDCコールバックを処理する。
// GET /auth/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// プロバイダー側で拒否された場合はサインイン画面に戻す
	if providerErr := q.Get("error"); providerErr != "" {
		slog.WarnContext(r.Context(), "oauth provider returned error", slog.String("error", providerErr))
		h.clearFlowCookies(w)
		http.Redirect(w, r, redirect.SignInPath, http.StatusSeeOther)
		return
	}

	state := q.Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.WarnContext(r.Context(), "oauth state mismatch")
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.AppError{
			Code:     "INVALID_STATE",
			Message:  "サインインの状態を確認できませんでした。",
			Category: "auth",
			Action:   "もう一度ログインしてください。",
		})
		return
	}

	nonce := ""
	if c, err := r.Cookie(oauthNonceCookie); err == nil {
		nonce = c.Value
	}
	returnTo := redirect.RootPath
	if c, err := r.Cookie(returnToCookie); err == nil {
		if v, err := url.QueryUnescape(c.Value); err == nil && redirect.IsSafeReturnPath(v) {
			returnTo = v
		}
	}
	h.clearFlowCookies(w)

	code := q.Get("code")
	if code == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.AppError{
			Code:     "MISSING_CODE",
			Message:  "認可コードがありません。",
			Category: "auth",
			Action:   "もう一度ログインしてください。",
		})
		return
	}

	session, err := h.service.HandleCallback(r.Context(), code, nonce)
	if err != nil {
		slog.ErrorContext(r.Context(), "oauth callback failed", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, &model.AppError{
			Code:     "AUTHENTICATION_FAILED",
			Message:  "認証に失敗しました。",
			Category: "auth",
			Action:   "もう一度ログインしてください。",
		})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// "/"の場合はルートのリダイレクト判定に任せる
	http.Redirect(w, r, returnTo, http.StatusSeeOther)
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			// 失敗してもCookieはクリアする
			slog.ErrorContext(r.Context(), "failed to logout", slog.String("error", logoutErr.Error()))
		}
	}

	clearSessionCookie(w, h.config)
	http.Redirect(w, r, redirect.SignInPath, http.StatusSeeOther)
}

func clearSessionCookie(w http.ResponseWriter, config AuthHandlerConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) setFlowCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/auth",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearFlowCookies(w http.ResponseWriter) {
	for _, name := range []string{oauthStateCookie, oauthNonceCookie, returnToCookie} {
		h.setFlowCookie(w, name, "", -1)
	}
}
