package redirect

import (
	"net/http"
	"net/url"
	"strings"
)

// RootPath は戻り先が決定できない場合のフォールバック。
const RootPath = "/"

// IsSafeReturnPath はパスがアプリケーション内部の相対パスとして安全かを判定する。
// 単一の"/"で始まり、"//"（プロトコル相対URL）や"/\"で始まらないものだけを許可する。
func IsSafeReturnPath(p string) bool {
	if p == "" || p[0] != '/' {
		return false
	}
	if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
		return false
	}
	// 制御文字を含む値はヘッダーインジェクションの足がかりになるため拒否する
	for i := 0; i < len(p); i++ {
		if p[i] < 0x20 || p[i] == 0x7f {
			return false
		}
	}
	return true
}

// ResolveReturnPath はクエリパラメータの候補を優先し、安全でなければヘッダーから戻り先を求める。
// 空文字列の候補は未指定として扱う。
func ResolveReturnPath(queryCandidate string, h http.Header, appOrigin *url.URL) string {
	if queryCandidate != "" && IsSafeReturnPath(queryCandidate) {
		return queryCandidate
	}
	return ResolveReturnPathFromHeaders(h, appOrigin)
}

// ResolveReturnPathFromHeaders はRefererヘッダーから同一オリジンのパスを取り出す。
// 未指定・不正な値・別オリジンの場合はRootPathを返す。
func ResolveReturnPathFromHeaders(h http.Header, appOrigin *url.URL) string {
	if h == nil || appOrigin == nil {
		return RootPath
	}

	referer := strings.TrimSpace(h.Get("Referer"))
	if referer == "" {
		return RootPath
	}

	ref, err := url.Parse(referer)
	if err != nil || !ref.IsAbs() {
		return RootPath
	}
	if !sameOrigin(ref, appOrigin) {
		return RootPath
	}

	p := ref.EscapedPath()
	if p == "" {
		p = RootPath
	}
	if ref.RawQuery != "" {
		p += "?" + ref.RawQuery
	}
	if !IsSafeReturnPath(p) {
		return RootPath
	}
	return p
}

// sameOrigin はスキームとホスト（ポート含む）が一致するかを判定する。
func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}
