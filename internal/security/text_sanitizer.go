// Package security はアプリケーションのセキュリティ機能を提供する。
//
// 利用者が入力する自己紹介やメモはプレーンテキストとして保存し、
// 描画時にhtml/templateでエスケープする。保存前にbluemondayの
// StrictPolicyでマークアップを全て取り除く。
package security

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は利用者入力からマークアップを取り除くインターフェース。
type TextSanitizer interface {
	// SanitizeText はタグを除去し、エンティティを復元したプレーンテキストを返す。
	// 前後の空白と制御文字（改行、タブを除く）も除去する。
	SanitizeText(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText はタグを除去したプレーンテキストを返す。
func (s *textSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := html.UnescapeString(s.policy.Sanitize(raw))
	stripped = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, stripped)
	return strings.TrimSpace(stripped)
}

// compile-time interface check
var _ TextSanitizer = (*textSanitizer)(nil)
