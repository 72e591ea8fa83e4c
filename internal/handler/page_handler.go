package handler

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/linkpage/internal/metrics"
	"github.com/hitoshi/linkpage/internal/middleware"
	"github.com/hitoshi/linkpage/internal/model"
	"github.com/hitoshi/linkpage/internal/onboarding"
	"github.com/hitoshi/linkpage/internal/page"
	"github.com/hitoshi/linkpage/internal/redirect"
	"github.com/hitoshi/linkpage/internal/seo"
	"github.com/hitoshi/linkpage/internal/social"
	"github.com/hitoshi/linkpage/internal/visibility"
)

// PageServiceInterface はページ関連ハンドラーが必要とするサービスインターフェース。
type PageServiceInterface interface {
	GetVisiblePage(ctx context.Context, rawHandle, viewerUserID string) (*page.View, error)
	PrimaryHandle(ctx context.Context, userID string) (string, error)
	PrimaryPage(ctx context.Context, userID string) (*model.Page, error)
	UpdateSettings(ctx context.Context, userID string, in page.SettingsInput) (*model.Page, error)
	UpdateSocialLinks(ctx context.Context, userID string, links *social.PersistedSocialMap) error
}

// PageHandler はトップ、サインイン画面、公開ページの表示を扱う。
type PageHandler struct {
	pages    PageServiceInterface
	renderer *Renderer
	metrics  metrics.MetricsCollector
	baseURL  string
	origin   *url.URL // Refererの同一オリジン判定用。BASE_URLが不正ならnil
}

// NewPageHandler はPageHandlerを生成する。collectorはnilでもよい。
func NewPageHandler(pages PageServiceInterface, renderer *Renderer, collector metrics.MetricsCollector, baseURL string) *PageHandler {
	h := &PageHandler{
		pages:    pages,
		renderer: renderer,
		metrics:  collector,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}
	if u, err := url.Parse(baseURL); err == nil && u.IsAbs() {
		h.origin = u
	}
	return h
}

// Root はセッション状態に応じてサインイン、初期設定、自分のページのいずれかへ振り分ける。
// GET /
func (h *PageHandler) Root(w http.ResponseWriter, r *http.Request) {
	state := middleware.StateFromContext(r.Context())

	primaryHandle := ""
	if onboarding.IsComplete(state) {
		ph, err := h.pages.PrimaryHandle(r.Context(), state.UserID())
		if err != nil {
			h.renderer.RenderError(w, r, err)
			return
		}
		primaryHandle = ph
	}

	target := redirect.ResolveRedirectPath(state != nil, onboarding.IsComplete(state), primaryHandle)
	h.recordRedirect(target)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *PageHandler) recordRedirect(target string) {
	if h.metrics == nil {
		return
	}
	switch target {
	case redirect.SignInPath:
		h.metrics.RecordRedirect(metrics.RedirectLogin)
	case redirect.OnboardingPath:
		h.metrics.RecordRedirect(metrics.RedirectOnboarding)
	default:
		h.metrics.RecordRedirect(metrics.RedirectPage)
	}
}

type loginPageData struct {
	LoginURL string
}

// LoginPage はサインイン画面を表示する。サインイン済みならトップへ戻す。
// GET /login?return_to=/path
func (h *PageHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if middleware.StateFromContext(r.Context()) != nil {
		http.Redirect(w, r, redirect.RootPath, http.StatusSeeOther)
		return
	}

	// return_toが無いか安全でなければ同一オリジンのRefererを使う。/login自身には戻さない
	returnTo := redirect.ResolveReturnPath(r.URL.Query().Get("return_to"), r.Header, h.origin)
	if strings.HasPrefix(returnTo, redirect.SignInPath) {
		returnTo = redirect.RootPath
	}

	h.renderer.Render(w, http.StatusOK, pageLogin, loginPageData{
		LoginURL: "/auth/login?return_to=" + url.QueryEscape(returnTo),
	})
}

type socialField struct {
	Name  string
	Label string
	Value string
}

type profilePageData struct {
	Page            *model.Page
	CanonicalURL    string
	JSONLD          template.JS
	IsOwner         bool
	HideOwnerHandle bool
	ShowSignOut     bool
	SocialLinks     []social.LinkItem
	SocialFields    []socialField
	Items           []*model.ContentItem
	CSRFToken       string
}

// ShowPage は公開ページを表示する。
// 形式不正、未登録、非公開はいずれも同じ404画面にする。
// GET /{handle}
func (h *PageHandler) ShowPage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	state := middleware.StateFromContext(ctx)

	view, err := h.pages.GetVisiblePage(ctx, chi.URLParam(r, "handle"), state.UserID())
	if err != nil {
		h.renderer.RenderError(w, r, err)
		return
	}

	data := profilePageData{
		Page:         view.Page,
		CanonicalURL: h.baseURL + "/" + view.Page.Handle,
		JSONLD:       seo.BuildProfileJSONLD(view.Page, h.baseURL, view.SameAs()),
		IsOwner:      view.IsOwner,
		ShowSignOut:  visibility.ShouldRenderSignOutAction(state != nil, view.IsOwner),
		SocialLinks:  view.SocialLinks,
		Items:        view.Items,
		CSRFToken:    middleware.CSRFToken(ctx),
	}
	if view.IsOwner {
		data.HideOwnerHandle = visibility.ShouldHideOwnerHandle(
			visibility.IsMobileViewport(r.Header),
			visibility.IsMobileWebRuntime(r.UserAgent()),
		)
		data.SocialFields = buildSocialFields(view.Social)
	}

	h.renderer.Render(w, http.StatusOK, pageProfile, data)

	if h.metrics != nil {
		h.metrics.RecordPageRender(time.Since(start))
	}
	slog.DebugContext(ctx, "page rendered",
		slog.String("handle", view.Page.Handle),
		slog.Bool("is_owner", view.IsOwner),
	)
}

// buildSocialFields は編集フォームの入力欄を対応プラットフォームの表示順に並べる。
func buildSocialFields(links *social.PersistedSocialMap) []socialField {
	platforms := social.Platforms()
	fields := make([]socialField, 0, len(platforms))
	for _, p := range platforms {
		v, _ := links.Get(p)
		fields = append(fields, socialField{
			Name:  social.FormFieldName(p),
			Label: social.Label(p),
			Value: v,
		})
	}
	return fields
}
