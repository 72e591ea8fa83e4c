// Package onboarding は初期設定（ハンドル取得とプライマリページ作成）の状態判定と完了処理を提供する。
package onboarding

import "github.com/hitoshi/linkpage/internal/model"

// IsComplete はセッションのユーザーが初期設定を完了しているかを返す。
// セッションが無い、またはメタデータが不正な場合はfalse（再度初期設定へ誘導する）。
func IsComplete(state *model.SessionState) bool {
	if state == nil || state.User == nil {
		return false
	}
	return state.User.Metadata.OnboardingComplete
}

