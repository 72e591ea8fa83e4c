package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/hitoshi/linkpage/internal/middleware"
	"github.com/hitoshi/linkpage/internal/model"
	"github.com/hitoshi/linkpage/internal/onboarding"
	"github.com/hitoshi/linkpage/internal/redirect"
)

// OnboardingServiceInterface は初期設定ハンドラーが必要とするサービスインターフェース。
type OnboardingServiceInterface interface {
	Complete(ctx context.Context, userID, rawHandle, rawTitle string) (*model.Page, error)
}

// OnboardingHandler は初期設定（ハンドル取得とプライマリページ作成）の画面を扱う。
type OnboardingHandler struct {
	service  OnboardingServiceInterface
	renderer *Renderer
}

// NewOnboardingHandler はOnboardingHandlerを生成する。
func NewOnboardingHandler(service OnboardingServiceInterface, renderer *Renderer) *OnboardingHandler {
	return &OnboardingHandler{
		service:  service,
		renderer: renderer,
	}
}

type onboardingPageData struct {
	Error     *model.AppError
	CSRFToken string
	Handle    string
	PageTitle string
}

// Show は初期設定フォームを表示する。完了済みならトップへ戻す。
// GET /onboarding
func (h *OnboardingHandler) Show(w http.ResponseWriter, r *http.Request) {
	if onboarding.IsComplete(middleware.StateFromContext(r.Context())) {
		http.Redirect(w, r, redirect.RootPath, http.StatusSeeOther)
		return
	}
	h.renderer.Render(w, http.StatusOK, pageOnboarding, onboardingPageData{
		CSRFToken: middleware.CSRFToken(r.Context()),
	})
}

// Submit は初期設定を完了し、作成したページへ遷移する。
// 入力エラーはフォームを再表示して伝える。
// POST /onboarding
func (h *OnboardingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		h.renderer.RenderError(w, r, model.NewUnauthorizedError())
		return
	}

	rawHandle := r.PostFormValue("handle")
	rawTitle := r.PostFormValue("title")

	p, err := h.service.Complete(r.Context(), userID, rawHandle, rawTitle)
	if err != nil {
		var appErr *model.AppError
		if errors.As(err, &appErr) && appErr.Category == "validation" {
			h.renderer.Render(w, statusForAppError(appErr), pageOnboarding, onboardingPageData{
				Error:     appErr,
				CSRFToken: middleware.CSRFToken(r.Context()),
				Handle:    rawHandle,
				PageTitle: rawTitle,
			})
			return
		}
		if errors.As(err, &appErr) && appErr.Code == model.ErrCodeAlreadyOnboarded {
			http.Redirect(w, r, redirect.RootPath, http.StatusSeeOther)
			return
		}
		h.renderer.RenderError(w, r, err)
		return
	}

	http.Redirect(w, r, "/"+p.Handle, http.StatusSeeOther)
}
