package page

import (
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/linkpage/internal/model"
)

const (
	// MaxTitleRunes はページタイトルの最大文字数。
	MaxTitleRunes = 60
	// MaxBioRunes は自己紹介文の最大文字数。
	MaxBioRunes = 160
)

// ValidateTitle は前後の空白を除いたタイトルを検証して返す。
// 空、またはMaxTitleRunesを超える場合はINVALID_TITLEを返す。
func ValidateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" || utf8.RuneCountInString(title) > MaxTitleRunes {
		return "", model.NewInvalidTitleError(MaxTitleRunes)
	}
	return title, nil
}

// ResolveShouldTrackHandleUpdateFeature はハンドル更新イベントを記録すべきかを返す。
// 保存前後のハンドルが異なる場合のみtrue。
func ResolveShouldTrackHandleUpdateFeature(prev, next string) bool {
	return prev != next
}
