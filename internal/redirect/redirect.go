// Package redirect はセッション状態からの遷移先決定と、
// ログイン後の戻り先パスの安全な解決を提供する。
package redirect

const (
	// SignInPath は未ログインユーザーの遷移先。
	SignInPath = "/login"
	// OnboardingPath は初期設定が未完了のユーザーの遷移先。
	OnboardingPath = "/onboarding"
)

// ResolveRedirectPath はセッション有無・初期設定完了・プライマリページのハンドルから遷移先を返す。
// primaryPageHandleが空文字列の場合は「ページ未作成」とみなす。
// 評価順:
//
//	セッションなし            → SignInPath
//	初期設定未完了            → OnboardingPath
//	プライマリページなし      → OnboardingPath
//	それ以外                  → "/" + ハンドル
func ResolveRedirectPath(hasSession, onboardingComplete bool, primaryPageHandle string) string {
	if !hasSession {
		return SignInPath
	}
	if !onboardingComplete {
		return OnboardingPath
	}
	if primaryPageHandle == "" {
		return OnboardingPath
	}
	return "/" + primaryPageHandle
}
