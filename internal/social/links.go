package social

import (
	"net/url"
	"strings"
)

// SocialItem は永続化状態と編集フォーム状態の境界で使う{platform, username}の組。
type SocialItem struct {
	Platform Platform
	Username string
}

// LinkItem はページに描画するSNSリンク。
// Keyは一覧描画で一意になるよう platform + "-" + href とする。
type LinkItem struct {
	Key           string
	Href          string
	Label         string
	IconClassName string
}

// BuildConnectedSocialLinkItems は入力順にSNSリンクを組み立てる。
// 未対応のプラットフォームや、前後の空白を除いて空になる識別子は黙って除外する。
func BuildConnectedSocialLinkItems(items []SocialItem) []LinkItem {
	links := make([]LinkItem, 0, len(items))
	for _, item := range items {
		info, ok := platformInfos[item.Platform]
		if !ok {
			continue
		}
		username := normalizeUsername(item.Username)
		if username == "" {
			continue
		}

		href := info.URLPrefix + url.PathEscape(username)
		links = append(links, LinkItem{
			Key:           string(item.Platform) + "-" + href,
			Href:          href,
			Label:         info.Label,
			IconClassName: info.IconClassName,
		})
	}
	return links
}

// normalizeUsername は前後の空白と先頭の@を除去する。
func normalizeUsername(raw string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "@"))
}
