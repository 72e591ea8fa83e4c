package middleware

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/hitoshi/linkpage/internal/model"
)

// ErrorResponseBody はJSONエラーレスポンスの形式。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse はAppErrorをJSONで書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, appErr *model.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     appErr.Code,
		Message:  appErr.Message,
		Category: appErr.Category,
		Action:   appErr.Action,
	})
}

// fallbackPage はテンプレートを使えない層（ミドルウェア）から返す最小限のエラーページ。
const fallbackPage = `<!DOCTYPE html>
<html lang="ja"><head><meta charset="utf-8"><title>%s</title></head>
<body><main><h1>%s</h1><p>%s</p><p><a href="/">トップへ戻る</a></p></main></body></html>
`

// WriteError はリクエストの種類に合わせてエラーを書き込む。
// /api/ 配下とHTMLを受け付けないクライアントにはJSON、それ以外には簡易HTMLを返す。
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, appErr *model.AppError) {
	if !wantsHTML(r) {
		WriteErrorResponse(w, statusCode, appErr)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, fallbackPage,
		html.EscapeString(http.StatusText(statusCode)),
		html.EscapeString(appErr.Message),
		html.EscapeString(appErr.Action),
	)
}

func wantsHTML(r *http.Request) bool {
	if r == nil || strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// NewInternalError は内部エラーのAppErrorを生成する。
// 原因はログにだけ残し、利用者には汎用の文言を返す。
func NewInternalError() *model.AppError {
	return &model.AppError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// WriteInternalServerError は500のJSONレスポンスを書き込む。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, NewInternalError())
}
