package handler

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/linkpage/internal/middleware"
	"github.com/hitoshi/linkpage/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// 画面テンプレート名
const (
	pageLogin      = "login.html"
	pageOnboarding = "onboarding.html"
	pageProfile    = "page.html"
	pageError      = "error.html"
)

// Renderer はレイアウトと各画面のテンプレートを組み合わせてHTMLを描画する。
// 画面ごとに独立したテンプレートセットを持ち、"title"や"content"の定義が衝突しないようにする。
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer は埋め込みテンプレートを解析してRendererを生成する。
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Renderer{
		pages:  make(map[string]*template.Template),
		logger: logger,
	}
	for _, name := range []string{pageLogin, pageOnboarding, pageProfile, pageError} {
		t, err := template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render は画面をバッファに描画してからレスポンスに書き込む。
// 描画に失敗した場合は途中までのHTMLを送らずに500を返す。
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.pages[name]
	if !ok {
		r.logger.Error("unknown template", slog.String("template", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("template execution failed",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		r.logger.Warn("failed to write rendered template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
	}
}

// errorPageData はエラー画面の描画データ。
type errorPageData struct {
	Error *model.AppError
}

// RenderError はエラーをHTMLのエラー画面として描画する。
// AppError以外はログに記録し、汎用の500画面を返す。
func (r *Renderer) RenderError(w http.ResponseWriter, req *http.Request, err error) {
	var appErr *model.AppError
	if !errors.As(err, &appErr) {
		slog.ErrorContext(req.Context(), "unexpected error",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.String("error", err.Error()),
		)
		r.Render(w, http.StatusInternalServerError, pageError, errorPageData{Error: middleware.NewInternalError()})
		return
	}
	r.Render(w, statusForAppError(appErr), pageError, errorPageData{Error: appErr})
}

const errCodeInvalidForm = "INVALID_FORM"

func newInvalidFormError() *model.AppError {
	return &model.AppError{
		Code:     errCodeInvalidForm,
		Message:  "フォームを読み取れませんでした。",
		Category: "validation",
		Action:   "入力内容を確認して再度送信してください。",
	}
}

// statusForAppError はAppErrorのコードをHTTPステータスに変換する。
func statusForAppError(appErr *model.AppError) int {
	switch appErr.Code {
	case model.ErrCodeInvalidHandle,
		model.ErrCodeReservedHandle,
		model.ErrCodeInvalidTitle,
		model.ErrCodeInvalidBio,
		model.ErrCodeInvalidItem,
		model.ErrCodeInvalidURL,
		model.ErrCodeImageRejected,
		errCodeInvalidForm:
		return http.StatusBadRequest
	case model.ErrCodeHandleTaken,
		model.ErrCodeAlreadyOnboarded,
		model.ErrCodeOnboardingPending:
		return http.StatusConflict
	case model.ErrCodePageNotFound, model.ErrCodeItemNotFound:
		return http.StatusNotFound
	case model.ErrCodeUserNotFound, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeAPIError はJSON APIのエラーレスポンスを書き込む。
func writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		middleware.WriteErrorResponse(w, statusForAppError(appErr), appErr)
		return
	}
	slog.ErrorContext(r.Context(), "unexpected error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}
