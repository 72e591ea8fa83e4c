// Package model はドメインモデルを定義する。
package model

import "fmt"

// AppError は統一エラーフォーマットを表す。
// 画面に表示する原因カテゴリと対処方法を含む。
type AppError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, page, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidHandle     = "INVALID_HANDLE"
	ErrCodeReservedHandle    = "RESERVED_HANDLE"
	ErrCodeHandleTaken       = "HANDLE_TAKEN"
	ErrCodeInvalidTitle      = "INVALID_TITLE"
	ErrCodeInvalidBio        = "INVALID_BIO"
	ErrCodeAlreadyOnboarded  = "ALREADY_ONBOARDED"
	ErrCodeOnboardingPending = "ONBOARDING_PENDING"
	ErrCodePageNotFound      = "PAGE_NOT_FOUND"
	ErrCodeInvalidItem       = "INVALID_ITEM"
	ErrCodeItemNotFound      = "ITEM_NOT_FOUND"
	ErrCodeItemCreateFailed  = "ITEM_CREATE_FAILED"
	ErrCodeInvalidURL        = "INVALID_URL"
	ErrCodeImageRejected     = "IMAGE_REJECTED"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
)

// NewInvalidHandleError はハンドル形式エラーを生成する。
func NewInvalidHandleError() *AppError {
	return &AppError{
		Code:     ErrCodeInvalidHandle,
		Message:  "ハンドルの形式が正しくありません。",
		Category: "validation",
		Action:   "@に続けて英小文字と数字を3〜20文字で入力してください。",
	}
}

// NewReservedHandleError は予約済みハンドルエラーを生成する。
func NewReservedHandleError() *AppError {
	return &AppError{
		Code:     ErrCodeReservedHandle,
		Message:  "このハンドルは予約されているため使用できません。",
		Category: "validation",
		Action:   "別のハンドルを入力してください。",
	}
}

// NewHandleTakenError はハンドル重複エラーを生成する。
func NewHandleTakenError() *AppError {
	return &AppError{
		Code:     ErrCodeHandleTaken,
		Message:  "このハンドルは既に使われています。",
		Category: "validation",
		Action:   "別のハンドルを入力してください。",
	}
}

// NewInvalidTitleError はページタイトルの検証エラーを生成する。
func NewInvalidTitleError(maxRunes int) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidTitle,
		Message:  fmt.Sprintf("タイトルは1〜%d文字で入力してください。", maxRunes),
		Category: "validation",
		Action:   "タイトルを確認してください。",
	}
}

// NewInvalidBioError は自己紹介文の検証エラーを生成する。
func NewInvalidBioError(maxRunes int) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidBio,
		Message:  fmt.Sprintf("自己紹介は%d文字以内で入力してください。", maxRunes),
		Category: "validation",
		Action:   "自己紹介を短くしてください。",
	}
}

// NewAlreadyOnboardedError はオンボーディング完了済みユーザーの再実行エラーを生成する。
func NewAlreadyOnboardedError() *AppError {
	return &AppError{
		Code:     ErrCodeAlreadyOnboarded,
		Message:  "初期設定は既に完了しています。",
		Category: "page",
		Action:   "ページの設定画面から変更してください。",
	}
}

// NewOnboardingPendingError はページ未作成ユーザーの操作エラーを生成する。
func NewOnboardingPendingError() *AppError {
	return &AppError{
		Code:     ErrCodeOnboardingPending,
		Message:  "ページがまだ作成されていません。",
		Category: "page",
		Action:   "初期設定を完了してください。",
	}
}

// NewPageNotFoundError はページ未検出エラーを生成する。
// 非公開ページも訪問者には同じエラーを返す。
func NewPageNotFoundError() *AppError {
	return &AppError{
		Code:     ErrCodePageNotFound,
		Message:  "ページが見つかりません。",
		Category: "page",
		Action:   "URLを確認してください。",
	}
}

// NewInvalidItemError はコンテンツアイテムの検証エラーを生成する。
func NewInvalidItemError(reason string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidItem,
		Message:  fmt.Sprintf("アイテムの内容が正しくありません: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewItemNotFoundError はコンテンツアイテム未検出エラーを生成する。
func NewItemNotFoundError(itemID string) *AppError {
	return &AppError{
		Code:     ErrCodeItemNotFound,
		Message:  fmt.Sprintf("指定されたアイテムが見つかりません: %s", itemID),
		Category: "page",
		Action:   "ページを再読み込みしてください。",
	}
}

// NewItemCreateFailedError はアイテム作成関数が行を返さなかった場合のエラーを生成する。
func NewItemCreateFailedError() *AppError {
	return &AppError{
		Code:     ErrCodeItemCreateFailed,
		Message:  "アイテムの作成に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（https:// で始まるURL）を入力してください。",
	}
}

// NewImageRejectedError は画像URLの検証失敗エラーを生成する。
func NewImageRejectedError(reason string) *AppError {
	return &AppError{
		Code:     ErrCodeImageRejected,
		Message:  fmt.Sprintf("画像を利用できません: %s", reason),
		Category: "validation",
		Action:   "公開されている画像ファイルのURLを指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *AppError {
	return &AppError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *AppError {
	return &AppError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}
