package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/linkpage/internal/reqcache"
)

// newTestChain は本番と同じ順序でミドルウェアを積んだルーターを返す。
func newTestChain(t *testing.T, resolver SessionStateResolver) chi.Router {
	t.Helper()
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware())
	r.Use(NewSecurityHeadersMiddleware())
	r.Use(reqcache.Middleware)
	r.Use(NewSessionMiddleware(resolver))
	r.Use(NewCSRFMiddleware(CSRFConfig{}))
	r.Use(rl.Middleware())

	r.Get("/public", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Group(func(r chi.Router) {
		r.Use(NewRequireSessionMiddleware("/login"))
		r.Post("/settings/page", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFromContext(r.Context())
			w.Write([]byte(userID))
		})
	})
	return r
}

// TestMiddlewareChain_AnonymousGET は未ログインでも公開ルートが表示できることを検証する。
func TestMiddlewareChain_AnonymousGET(t *testing.T) {
	r := newTestChain(t, &mockStateResolver{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/public", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestMiddlewareChain_ProtectedPOST_WithSessionAndToken はセッションとCSRFトークンが揃えば保護ルートに到達することを検証する。
func TestMiddlewareChain_ProtectedPOST_WithSessionAndToken(t *testing.T) {
	r := newTestChain(t, validResolver("router-session", "user-router-test"))

	req := httptest.NewRequest(http.MethodPost, "/settings/page", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "router-session"})
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "tok"})
	req.Header.Set(csrfHeaderName, "tok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "user-router-test" {
		t.Errorf("body = %q, want %q", w.Body.String(), "user-router-test")
	}
}

// TestMiddlewareChain_ProtectedPOST_WithoutToken はCSRFトークンなしのPOSTが拒否されることを検証する。
func TestMiddlewareChain_ProtectedPOST_WithoutToken(t *testing.T) {
	r := newTestChain(t, validResolver("router-session", "user-router-test"))

	req := httptest.NewRequest(http.MethodPost, "/settings/page", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "router-session"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

// TestMiddlewareChain_ProtectedPOST_WithoutSession はセッションなしのPOSTがサインインへ誘導されることを検証する。
func TestMiddlewareChain_ProtectedPOST_WithoutSession(t *testing.T) {
	r := newTestChain(t, &mockStateResolver{})

	req := httptest.NewRequest(http.MethodPost, "/settings/page", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "tok"})
	req.Header.Set(csrfHeaderName, "tok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
}
