package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/linkpage/internal/item"
	"github.com/hitoshi/linkpage/internal/middleware"
	"github.com/hitoshi/linkpage/internal/model"
	"github.com/hitoshi/linkpage/internal/page"
	"github.com/hitoshi/linkpage/internal/redirect"
	"github.com/hitoshi/linkpage/internal/social"
)

// ItemServiceInterface はコンテンツアイテム操作に必要なサービスインターフェース。
type ItemServiceInterface interface {
	Create(ctx context.Context, userID string, in item.CreateInput) (*model.ContentItem, error)
	Delete(ctx context.Context, userID, itemID string) error
}

// SettingsHandler は所有者によるページ設定フォームの送信を扱う。
// 成功時はいずれも自分のページへ303で戻す。
type SettingsHandler struct {
	pages    PageServiceInterface
	items    ItemServiceInterface
	renderer *Renderer
}

// NewSettingsHandler はSettingsHandlerを生成する。
func NewSettingsHandler(pages PageServiceInterface, items ItemServiceInterface, renderer *Renderer) *SettingsHandler {
	return &SettingsHandler{
		pages:    pages,
		items:    items,
		renderer: renderer,
	}
}

// UpdatePage はハンドル、タイトル、自己紹介、画像、公開設定を更新する。
// POST /settings/page
func (h *SettingsHandler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	p, err := h.pages.UpdateSettings(r.Context(), userID, page.SettingsInput{
		Handle:   r.PostFormValue("handle"),
		Title:    r.PostFormValue("title"),
		Bio:      r.PostFormValue("bio"),
		ImageURL: r.PostFormValue("image_url"),
		IsPublic: r.PostFormValue("is_public") == "true",
	})
	if err != nil {
		h.renderer.RenderError(w, r, err)
		return
	}

	http.Redirect(w, r, "/"+p.Handle, http.StatusSeeOther)
}

// UpdateSocial はSNSリンクを置き換える。
// POST /settings/social
func (h *SettingsHandler) UpdateSocial(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, r, newInvalidFormError())
		return
	}

	if err := h.pages.UpdateSocialLinks(r.Context(), userID, social.ParseSocialForm(r.PostForm)); err != nil {
		h.renderer.RenderError(w, r, err)
		return
	}
	h.redirectToPrimary(w, r, userID)
}

// CreateItem はメモまたはリンクを末尾に追加する。
// POST /settings/items
func (h *SettingsHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	_, err := h.items.Create(r.Context(), userID, item.CreateInput{
		Kind:  model.ItemKind(r.PostFormValue("kind")),
		Title: r.PostFormValue("title"),
		Body:  r.PostFormValue("body"),
		URL:   r.PostFormValue("url"),
	})
	if err != nil {
		h.renderer.RenderError(w, r, err)
		return
	}
	h.redirectToPrimary(w, r, userID)
}

// DeleteItem はアイテムを削除する。
// POST /settings/items/{id}/delete
func (h *SettingsHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.items.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.renderer.RenderError(w, r, err)
		return
	}
	h.redirectToPrimary(w, r, userID)
}

func (h *SettingsHandler) requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		h.renderer.RenderError(w, r, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

func (h *SettingsHandler) redirectToPrimary(w http.ResponseWriter, r *http.Request, userID string) {
	ph, err := h.pages.PrimaryHandle(r.Context(), userID)
	if err != nil {
		h.renderer.RenderError(w, r, err)
		return
	}
	if ph == "" {
		http.Redirect(w, r, redirect.OnboardingPath, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/"+ph, http.StatusSeeOther)
}
