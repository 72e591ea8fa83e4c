package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/linkpage/internal/model"
	"github.com/hitoshi/linkpage/internal/page"
	"github.com/hitoshi/linkpage/internal/social"
)

type recordingMetrics struct {
	redirects []string
	renders   int
	statuses  []int
}

func (m *recordingMetrics) RecordPageView(string) {}
func (m *recordingMetrics) RecordRedirect(target string) { m.redirects = append(m.redirects, target) }
func (m *recordingMetrics) RecordHandleUpdate() {}
func (m *recordingMetrics) RecordItemCreated(string) {}
func (m *recordingMetrics) RecordOnboardingCompleted() {}
func (m *recordingMetrics) RecordPageRender(time.Duration) { m.renders++ }
func (m *recordingMetrics) RecordHTTPStatus(code int) { m.statuses = append(m.statuses, code) }

func alicePage() *model.Page {
	return &model.Page{
		ID:       "page-1",
		UserID:   "user-alice",
		Handle:   "@alice",
		Title:    "Alice の部屋",
		Bio:      "写真と旅行",
		IsPublic: true,
	}
}

func aliceView(isOwner bool) *page.View {
	links := social.NewPersistedSocialMap()
	links.Set(social.PlatformGitHub, "alice")
	return &page.View{
		Page:        alicePage(),
		Social:      links,
		SocialLinks: social.BuildConnectedSocialLinkItems(social.SerializePersistedSocialItems(links)),
		Items: []*model.ContentItem{
			{ID: "item-1", Kind: model.ItemKindLink, Title: "ブログ", URL: "https://blog.example/"},
			{ID: "item-2", Kind: model.ItemKindMemo, Body: "よろしく"},
		},
		IsOwner: isOwner,
	}
}

func TestPageHandler_Root(t *testing.T) {
	tests := []struct {
		name         string
		user         *model.User
		handle       string
		wantLocation string
		wantMetric   string
	}{
		{name: "no session", user: nil, wantLocation: "/login", wantMetric: "login"},
		{name: "onboarding pending", user: testUser("u1", false), wantLocation: "/onboarding", wantMetric: "onboarding"},
		{name: "onboarded without page", user: testUser("u1", true), handle: "", wantLocation: "/onboarding", wantMetric: "onboarding"},
		{name: "onboarded with page", user: testUser("u1", true), handle: "@alice", wantLocation: "/@alice", wantMetric: "page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := &mockPageService{
				primaryHandleFn: func(ctx context.Context, userID string) (string, error) {
					return tt.handle, nil
				},
			}
			m := &recordingMetrics{}
			h := NewPageHandler(pages, newTestRenderer(t), m, "https://linkpage.example")

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.user != nil {
				req = withSession(req, tt.user)
			}
			w := httptest.NewRecorder()
			h.Root(w, req)

			if w.Code != http.StatusSeeOther {
				t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
			}
			if loc := w.Header().Get("Location"); loc != tt.wantLocation {
				t.Errorf("Location = %q, want %q", loc, tt.wantLocation)
			}
			if len(m.redirects) != 1 || m.redirects[0] != tt.wantMetric {
				t.Errorf("redirect metrics = %v, want [%s]", m.redirects, tt.wantMetric)
			}
		})
	}
}

func TestPageHandler_Root_PrimaryHandleError(t *testing.T) {
	pages := &mockPageService{
		primaryHandleFn: func(ctx context.Context, userID string) (string, error) {
			return "", errors.New("db down")
		},
	}
	h := NewPageHandler(pages, newTestRenderer(t), nil, "https://linkpage.example")

	req := withSession(httptest.NewRequest(http.MethodGet, "/", nil), testUser("u1", true))
	w := httptest.NewRecorder()
	h.Root(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestPageHandler_LoginPage(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		referer string
		wantURL string
	}{
		{name: "safe return path", target: "/login?return_to=%2F%40alice", wantURL: "/auth/login?return_to=%2f%40alice"},
		{name: "protocol relative", target: "/login?return_to=%2F%2Fevil.example", wantURL: "/auth/login?return_to=%2f"},
		{name: "no return path", target: "/login", wantURL: "/auth/login?return_to=%2f"},
		{name: "login loop", target: "/login?return_to=%2Flogin", wantURL: "/auth/login?return_to=%2f"},
		{name: "same-origin referer", target: "/login", referer: "https://linkpage.example/@alice", wantURL: "/auth/login?return_to=%2f%40alice"},
		{name: "query wins over referer", target: "/login?return_to=%2F%40bob", referer: "https://linkpage.example/@alice", wantURL: "/auth/login?return_to=%2f%40bob"},
		{name: "unsafe query falls back to referer", target: "/login?return_to=%2F%2Fevil.example", referer: "https://linkpage.example/@alice", wantURL: "/auth/login?return_to=%2f%40alice"},
		{name: "cross-origin referer", target: "/login", referer: "https://evil.example/@alice", wantURL: "/auth/login?return_to=%2f"},
		{name: "referer is login page", target: "/login", referer: "https://linkpage.example/login", wantURL: "/auth/login?return_to=%2f"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPageHandler(&mockPageService{}, newTestRenderer(t), nil, "https://linkpage.example")

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			w := httptest.NewRecorder()
			h.LoginPage(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			body := strings.ToLower(w.Body.String())
			if !strings.Contains(body, `href="`+tt.wantURL+`"`) {
				t.Errorf("body should contain login URL %q, got:\n%s", tt.wantURL, body)
			}
		})
	}
}

func TestPageHandler_LoginPage_SignedInRedirectsToRoot(t *testing.T) {
	h := NewPageHandler(&mockPageService{}, newTestRenderer(t), nil, "https://linkpage.example")

	req := withSession(httptest.NewRequest(http.MethodGet, "/login", nil), testUser("u1", true))
	w := httptest.NewRecorder()
	h.LoginPage(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want %q", loc, "/")
	}
}

func TestPageHandler_ShowPage_Visitor(t *testing.T) {
	var gotHandle, gotViewer string
	pages := &mockPageService{
		getVisiblePageFn: func(ctx context.Context, rawHandle, viewerUserID string) (*page.View, error) {
			gotHandle, gotViewer = rawHandle, viewerUserID
			return aliceView(false), nil
		},
	}
	m := &recordingMetrics{}
	h := NewPageHandler(pages, newTestRenderer(t), m, "https://linkpage.example/")

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/@alice", nil), "handle", "@alice")
	w := httptest.NewRecorder()
	h.ShowPage(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotHandle != "@alice" || gotViewer != "" {
		t.Errorf("GetVisiblePage(%q, %q), want (@alice, \"\")", gotHandle, gotViewer)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	body := w.Body.String()
	for _, want := range []string{
		"Alice の部屋",
		`<p class="handle">@alice</p>`,
		`href="https://github.com/alice"`,
		`href="https://blog.example/"`,
		"よろしく",
		`<link rel="canonical" href="https://linkpage.example/@alice">`,
		`"@type":"ProfilePage"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body should contain %q", want)
		}
	}
	for _, unwanted := range []string{`action="/settings/page"`, `action="/auth/logout"`} {
		if strings.Contains(body, unwanted) {
			t.Errorf("visitor body should not contain %q", unwanted)
		}
	}
	if m.renders != 1 {
		t.Errorf("render metrics = %d, want 1", m.renders)
	}
}

func TestPageHandler_ShowPage_Owner(t *testing.T) {
	pages := &mockPageService{
		getVisiblePageFn: func(ctx context.Context, rawHandle, viewerUserID string) (*page.View, error) {
			if viewerUserID != "user-alice" {
				t.Errorf("viewerUserID = %q, want %q", viewerUserID, "user-alice")
			}
			return aliceView(true), nil
		},
	}
	h := NewPageHandler(pages, newTestRenderer(t), nil, "https://linkpage.example")

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/@alice", nil), "handle", "@alice")
	req = withSession(req, testUser("user-alice", true))
	w := httptest.NewRecorder()
	h.ShowPage(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	for _, want := range []string{
		`action="/settings/page"`,
		`action="/settings/social"`,
		`action="/settings/items/item-1/delete"`,
		`action="/auth/logout"`,
		`name="social_github" value="alice"`,
		`name="social_x" value=""`,
		`<p class="handle">@alice</p>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("owner body should contain %q", want)
		}
	}
}

func TestPageHandler_ShowPage_OwnerOnMobileHidesHandle(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
	}{
		{name: "mobile user agent", header: map[string]string{"User-Agent": "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)"}},
		{name: "narrow viewport hint", header: map[string]string{"Sec-CH-Viewport-Width": "390"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := &mockPageService{
				getVisiblePageFn: func(ctx context.Context, rawHandle, viewerUserID string) (*page.View, error) {
					return aliceView(true), nil
				},
			}
			h := NewPageHandler(pages, newTestRenderer(t), nil, "https://linkpage.example")

			req := withURLParam(httptest.NewRequest(http.MethodGet, "/@alice", nil), "handle", "@alice")
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			req = withSession(req, testUser("user-alice", true))
			w := httptest.NewRecorder()
			h.ShowPage(w, req)

			if strings.Contains(w.Body.String(), `<p class="handle">`) {
				t.Error("owner handle should be hidden on mobile")
			}
		})
	}
}

func TestPageHandler_ShowPage_NotFound(t *testing.T) {
	pages := &mockPageService{
		getVisiblePageFn: func(ctx context.Context, rawHandle, viewerUserID string) (*page.View, error) {
			return nil, model.NewPageNotFoundError()
		},
	}
	m := &recordingMetrics{}
	h := NewPageHandler(pages, newTestRenderer(t), m, "https://linkpage.example")

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/@nobody", nil), "handle", "@nobody")
	w := httptest.NewRecorder()
	h.ShowPage(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if !strings.Contains(w.Body.String(), "ページが見つかりません。") {
		t.Error("body should contain not found message")
	}
	if m.renders != 0 {
		t.Errorf("render metrics = %d, want 0", m.renders)
	}
}
