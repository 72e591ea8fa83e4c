// Package handle はページのハンドル（@から始まる公開URLセグメント）の正規化と
// 予約語チェックを提供する。
package handle

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/hitoshi/linkpage/internal/model"
)

// Pattern は保存形式のハンドルが満たすべきパターン。
var Pattern = regexp.MustCompile(`^@[a-z0-9]{3,20}$`)

// NormalizeStoredHandleFromPath はURLパスセグメントを保存形式のハンドルに変換する。
// URLデコードと小文字化の後にPatternで検証し、一致しない場合は("", false)を返す。
// デコードできない入力もfalseとして扱い、呼び出し側は一律に「見つからない」とみなす。
func NormalizeStoredHandleFromPath(raw string) (string, bool) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}

	h := strings.ToLower(decoded)
	if !Pattern.MatchString(h) {
		return "", false
	}
	return h, true
}

// NormalizeHandleCandidate はフォーム入力のハンドル候補を保存形式に変換する。
// 前後の空白を除去し、@が無ければ補ったうえで小文字化して検証する。
func NormalizeHandleCandidate(raw string) (string, bool) {
	h := strings.ToLower(strings.TrimSpace(raw))
	if h == "" {
		return "", false
	}
	if !strings.HasPrefix(h, "@") {
		h = "@" + h
	}
	if !Pattern.MatchString(h) {
		return "", false
	}
	return h, true
}

// ValidateClaim はハンドルの取得・変更時の検証を行い、保存形式のハンドルを返す。
// 予約語のチェックはここでのみ行い、閲覧時の検索では行わない。
func ValidateClaim(raw string) (string, error) {
	h, ok := NormalizeHandleCandidate(raw)
	if !ok {
		return "", model.NewInvalidHandleError()
	}
	if IsReservedHandle(h) {
		return "", model.NewReservedHandleError()
	}
	return h, nil
}
