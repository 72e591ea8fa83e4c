package middleware

import "net/http"

// contentSecurityPolicy はサーバー描画ページのCSP。
// JSON-LDのscript要素は実行されないためscript-srcは自オリジンのみでよい。
const contentSecurityPolicy = "default-src 'self'; img-src 'self' https:; style-src 'self'; script-src 'self'; frame-ancestors 'none'; base-uri 'self'; form-action 'self'"

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
// Accept-CHでビューポート幅のClient Hintsを要求する。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			h.Set("Content-Security-Policy", contentSecurityPolicy)
			h.Set("Accept-CH", "Sec-CH-Viewport-Width, Viewport-Width")
			h.Add("Vary", "Sec-CH-Viewport-Width")
			next.ServeHTTP(w, r)
		})
	}
}
