// Package social はSNSリンクの表示用データへの変換と、
// 永続化形式と編集フォーム形式の間の相互変換を提供する。
package social

// Platform は対応するSNSプラットフォームの識別子。
type Platform string

const (
	PlatformX         Platform = "x"
	PlatformInstagram Platform = "instagram"
	PlatformGitHub    Platform = "github"
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformThreads   Platform = "threads"
	PlatformFacebook  Platform = "facebook"
	PlatformLinkedIn  Platform = "linkedin"
)

// platformInfo はプラットフォームごとのURLテンプレートと表示情報。
// URLPrefixに識別子を連結したものがリンク先となる。
type platformInfo struct {
	URLPrefix     string
	Label         string
	IconClassName string
}

// platformOrder は編集フォームで並べる順序。
var platformOrder = []Platform{
	PlatformX,
	PlatformInstagram,
	PlatformGitHub,
	PlatformYouTube,
	PlatformTikTok,
	PlatformThreads,
	PlatformFacebook,
	PlatformLinkedIn,
}

var platformInfos = map[Platform]platformInfo{
	PlatformX:         {URLPrefix: "https://x.com/", Label: "X", IconClassName: "icon-x"},
	PlatformInstagram: {URLPrefix: "https://www.instagram.com/", Label: "Instagram", IconClassName: "icon-instagram"},
	PlatformGitHub:    {URLPrefix: "https://github.com/", Label: "GitHub", IconClassName: "icon-github"},
	PlatformYouTube:   {URLPrefix: "https://www.youtube.com/@", Label: "YouTube", IconClassName: "icon-youtube"},
	PlatformTikTok:    {URLPrefix: "https://www.tiktok.com/@", Label: "TikTok", IconClassName: "icon-tiktok"},
	PlatformThreads:   {URLPrefix: "https://www.threads.net/@", Label: "Threads", IconClassName: "icon-threads"},
	PlatformFacebook:  {URLPrefix: "https://www.facebook.com/", Label: "Facebook", IconClassName: "icon-facebook"},
	PlatformLinkedIn:  {URLPrefix: "https://www.linkedin.com/in/", Label: "LinkedIn", IconClassName: "icon-linkedin"},
}

// Platforms は対応プラットフォームを表示順で返す。
func Platforms() []Platform {
	out := make([]Platform, len(platformOrder))
	copy(out, platformOrder)
	return out
}

// IsSupported はプラットフォームが対応済みかを返す。
func IsSupported(p Platform) bool {
	_, ok := platformInfos[p]
	return ok
}

// Label はプラットフォームの表示名を返す。未対応の場合は空文字列。
func Label(p Platform) string {
	return platformInfos[p].Label
}
