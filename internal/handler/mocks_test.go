package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/linkpage/internal/item"
	"github.com/hitoshi/linkpage/internal/middleware"
	"github.com/hitoshi/linkpage/internal/model"
	"github.com/hitoshi/linkpage/internal/page"
	"github.com/hitoshi/linkpage/internal/social"
)

// --- モック定義 ---

type mockAuthService struct {
	getLoginURLFn    func(state, nonce string) string
	handleCallbackFn func(ctx context.Context, code, nonce string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) GetLoginURL(state, nonce string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state, nonce)
	}
	return ""
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code, nonce string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code, nonce)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

type mockPageService struct {
	getVisiblePageFn    func(ctx context.Context, rawHandle, viewerUserID string) (*page.View, error)
	primaryHandleFn     func(ctx context.Context, userID string) (string, error)
	primaryPageFn       func(ctx context.Context, userID string) (*model.Page, error)
	updateSettingsFn    func(ctx context.Context, userID string, in page.SettingsInput) (*model.Page, error)
	updateSocialLinksFn func(ctx context.Context, userID string, links *social.PersistedSocialMap) error
}

func (m *mockPageService) GetVisiblePage(ctx context.Context, rawHandle, viewerUserID string) (*page.View, error) {
	if m.getVisiblePageFn != nil {
		return m.getVisiblePageFn(ctx, rawHandle, viewerUserID)
	}
	return nil, model.NewPageNotFoundError()
}

func (m *mockPageService) PrimaryHandle(ctx context.Context, userID string) (string, error) {
	if m.primaryHandleFn != nil {
		return m.primaryHandleFn(ctx, userID)
	}
	return "", nil
}

func (m *mockPageService) PrimaryPage(ctx context.Context, userID string) (*model.Page, error) {
	if m.primaryPageFn != nil {
		return m.primaryPageFn(ctx, userID)
	}
	return nil, model.NewOnboardingPendingError()
}

func (m *mockPageService) UpdateSettings(ctx context.Context, userID string, in page.SettingsInput) (*model.Page, error) {
	if m.updateSettingsFn != nil {
		return m.updateSettingsFn(ctx, userID, in)
	}
	return nil, nil
}

func (m *mockPageService) UpdateSocialLinks(ctx context.Context, userID string, links *social.PersistedSocialMap) error {
	if m.updateSocialLinksFn != nil {
		return m.updateSocialLinksFn(ctx, userID, links)
	}
	return nil
}

type mockOnboardingService struct {
	completeFn func(ctx context.Context, userID, rawHandle, rawTitle string) (*model.Page, error)
}

func (m *mockOnboardingService) Complete(ctx context.Context, userID, rawHandle, rawTitle string) (*model.Page, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, userID, rawHandle, rawTitle)
	}
	return nil, nil
}

type mockItemService struct {
	createFn func(ctx context.Context, userID string, in item.CreateInput) (*model.ContentItem, error)
	deleteFn func(ctx context.Context, userID, itemID string) error
}

func (m *mockItemService) Create(ctx context.Context, userID string, in item.CreateInput) (*model.ContentItem, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return &model.ContentItem{}, nil
}

func (m *mockItemService) Delete(ctx context.Context, userID, itemID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, itemID)
	}
	return nil
}

type mockUserService struct {
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) Check(ctx context.Context) error {
	return m.err
}

type mockSessionResolver struct {
	states map[string]*model.SessionState
}

func (m *mockSessionResolver) CurrentState(ctx context.Context, sessionID string) (*model.SessionState, error) {
	return m.states[sessionID], nil
}

// --- ヘルパー ---

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return r
}

func testUser(id string, onboarded bool) *model.User {
	return &model.User{
		ID:    id,
		Email: id + "@example.com",
		Name:  "Test " + id,
		Metadata: model.UserMetadata{
			OnboardingComplete: onboarded,
			Role:               model.RoleUser,
		},
	}
}

// withSession はセッションミドルウェアを通した状態のリクエストを返す。
func withSession(r *http.Request, user *model.User) *http.Request {
	state := &model.SessionState{SessionID: "session-" + user.ID, User: user}
	return r.WithContext(middleware.ContextWithSessionState(r.Context(), state))
}

// withURLParam はchiのURLパラメータを設定したリクエストを返す。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
