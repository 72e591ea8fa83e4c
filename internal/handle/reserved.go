package handle

import "strings"

// reservedHandles はアプリケーションのルートと衝突するため取得できない語の集合。
var reservedHandles = func() map[string]struct{} {
	words := []string{
		"admin", "api", "app", "auth", "blog", "callback", "dashboard", "docs",
		"edit", "explore", "help", "home", "login", "logout", "me", "metrics",
		"new", "onboarding", "page", "pages", "privacy", "profile", "root", "settings",
		"signin", "signout", "signup", "static", "support", "system", "terms", "user",
		"users", "www",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}()

// IsReservedHandle は候補が予約語かどうかを判定する。
// 先頭の@は省略可能で、大文字小文字は区別しない。
func IsReservedHandle(candidate string) bool {
	name := strings.TrimPrefix(strings.ToLower(candidate), "@")
	_, ok := reservedHandles[name]
	return ok
}
