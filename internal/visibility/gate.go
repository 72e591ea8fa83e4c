// Package visibility はページの閲覧可否と、オーナー向け表示要素の出し分けを判定する。
package visibility

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/linkpage/internal/model"
)

// mobileViewportMaxWidth はモバイル扱いとするビューポート幅（CSSピクセル）の上限（未満）。
const mobileViewportMaxWidth = 768

// mobileUserAgentKeywords はモバイルWebランタイムとみなすUser-Agentのキーワード。
var mobileUserAgentKeywords = []string{"ipad", "iphone", "android"}

// ShouldRenderSignOutAction はログアウト操作を表示するかを判定する。
// セッションがあり、かつ自分のページを見ている場合のみtrue。
func ShouldRenderSignOutAction(hasSession, isOwnerPage bool) bool {
	return hasSession && isOwnerPage
}

// ShouldHideOwnerHandle はページ上部のハンドル表示を隠すかを判定する。
// ビューポート幅とUser-Agentはそれぞれ単独で十分条件として扱う。
func ShouldHideOwnerHandle(isMobileViewport, isMobileWebRuntime bool) bool {
	return isMobileViewport || isMobileWebRuntime
}

// IsMobileWebRuntime はUser-Agentにモバイルのキーワードが含まれるかを判定する。
func IsMobileWebRuntime(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, kw := range mobileUserAgentKeywords {
		if strings.Contains(ua, kw) {
			return true
		}
	}
	return false
}

// IsMobileViewport はClient Hintsのビューポート幅からモバイル表示かを判定する。
// Sec-CH-Viewport-Widthを優先し、無ければViewport-Widthを見る。
// ヒントが無い、または数値でない場合はfalse。
func IsMobileViewport(h http.Header) bool {
	if h == nil {
		return false
	}
	v := h.Get("Sec-CH-Viewport-Width")
	if v == "" {
		v = h.Get("Viewport-Width")
	}
	if v == "" {
		return false
	}
	width, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || width <= 0 {
		return false
	}
	return width < mobileViewportMaxWidth
}

// CanVisitorView は訪問者がページを閲覧できるかを判定する。
// オーナーであっても訪問者としての判定は変わらない。
func CanVisitorView(page *model.Page) bool {
	return page != nil && page.IsPublic
}

// IsOwner は閲覧者がページのオーナーかを判定する。
func IsOwner(page *model.Page, viewerUserID string) bool {
	return page != nil && viewerUserID != "" && page.UserID == viewerUserID
}
