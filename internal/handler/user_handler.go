package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/linkpage/internal/middleware"
	"github.com/hitoshi/linkpage/internal/model"
	"github.com/hitoshi/linkpage/internal/redirect"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw はユーザーの退会処理を実行する。
	// セッションを削除した後にユーザーを削除し、ページ、リンク、アイテム、IDは連鎖削除される。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はアカウント情報と退会のHTTPハンドラー。
type UserHandler struct {
	service  UserServiceInterface
	pages    PageServiceInterface
	renderer *Renderer
	cookies  AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, pages PageServiceInterface, renderer *Renderer, cookies AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service:  service,
		pages:    pages,
		renderer: renderer,
		cookies:  cookies,
	}
}

type meResponse struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Name               string     `json:"name"`
	OnboardingComplete bool       `json:"onboardingComplete"`
	Role               model.Role `json:"role"`
	PrimaryHandle      *string    `json:"primaryHandle"`
}

// Me は現在のログインユーザー情報を返す。ページ未作成ならprimaryHandleはnull。
// GET /api/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	state := middleware.StateFromContext(r.Context())
	if state == nil || state.User == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	ph, err := h.pages.PrimaryHandle(r.Context(), state.UserID())
	if err != nil {
		writeAPIError(w, r, err)
		return
	}

	role := state.User.Metadata.Role
	if role != model.RoleAdmin {
		role = model.RoleUser
	}
	resp := meResponse{
		ID:                 state.User.ID,
		Email:              state.User.Email,
		Name:               state.User.Name,
		OnboardingComplete: state.User.Metadata.OnboardingComplete,
		Role:               role,
	}
	if ph != "" {
		resp.PrimaryHandle = &ph
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.WarnContext(r.Context(), "failed to encode response", slog.String("error", err.Error()))
	}
}

// Withdraw はユーザーの退会処理を実行し、セッションCookieを消してサインイン画面へ戻す。
// POST /settings/withdraw
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		h.renderer.RenderError(w, r, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		h.renderer.RenderError(w, r, err)
		return
	}

	clearSessionCookie(w, h.cookies)
	http.Redirect(w, r, redirect.SignInPath, http.StatusSeeOther)
}
