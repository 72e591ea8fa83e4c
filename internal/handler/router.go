package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/linkpage/internal/metrics"
	"github.com/hitoshi/linkpage/internal/middleware"
	"github.com/hitoshi/linkpage/internal/model"
	"github.com/hitoshi/linkpage/internal/redirect"
	"github.com/hitoshi/linkpage/internal/reqcache"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger   *slog.Logger
	Renderer *Renderer
	BaseURL  string

	// ミドルウェア依存
	SessionResolver middleware.SessionStateResolver
	CSRFConfig      middleware.CSRFConfig
	RateLimiter     *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ページ・初期設定・アイテム・ユーザー
	PageService       PageServiceInterface
	OnboardingService OnboardingServiceInterface
	ItemService       ItemServiceInterface
	UserService       UserServiceInterface

	// 運用
	HealthChecker HealthChecker
	Metrics       metrics.MetricsCollector
	Gatherer      prometheus.Gatherer
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → SecurityHeaders → Logging → RequestCache → Session → CSRF → RateLimit
//
// /health と /metrics はセッションやCSRFを必要としないためチェーンの外側に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())

	r.Get("/health", HealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	pageHandler := NewPageHandler(deps.PageService, deps.Renderer, deps.Metrics, deps.BaseURL)
	onboardingHandler := NewOnboardingHandler(deps.OnboardingService, deps.Renderer)
	settingsHandler := NewSettingsHandler(deps.PageService, deps.ItemService, deps.Renderer)
	userHandler := NewUserHandler(deps.UserService, deps.PageService, deps.Renderer, deps.AuthConfig)

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var statuses middleware.StatusRecorder
	if deps.Metrics != nil {
		statuses = deps.Metrics
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewLoggingMiddleware(logger, statuses))
		r.Use(reqcache.Middleware)
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		// --- セッション任意のルート ---
		r.Get("/", pageHandler.Root)
		r.Get("/login", pageHandler.LoginPage)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/login", authHandler.Login)
			r.Get("/callback", authHandler.Callback)
			r.Post("/logout", authHandler.Logout)
		})

		// --- セッション必須のルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewRequireSessionMiddleware(redirect.SignInPath))

			r.Get("/onboarding", onboardingHandler.Show)
			r.Post("/onboarding", onboardingHandler.Submit)

			r.Route("/settings", func(r chi.Router) {
				r.Post("/page", settingsHandler.UpdatePage)
				r.Post("/social", settingsHandler.UpdateSocial)
				r.Post("/items", settingsHandler.CreateItem)
				r.Post("/items/{id}/delete", settingsHandler.DeleteItem)
				r.Post("/withdraw", userHandler.Withdraw)
			})

			r.Get("/api/me", userHandler.Me)
		})

		// 公開ページは静的ルートより後に評価される
		r.Get("/{handle}", pageHandler.ShowPage)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		deps.Renderer.RenderError(w, req, model.NewPageNotFoundError())
	})

	return r
}
