package model

import "time"

// Page はユーザーの公開プロフィールページを表す。
// Handleは正規化済みの保存形式（@ + 英小文字数字3〜20文字）。
type Page struct {
	ID        string
	UserID    string
	Handle    string
	Title     string
	Bio       string
	ImageURL  string
	IsPublic  bool
	IsPrimary bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ItemKind はコンテンツアイテムの種別。
type ItemKind string

const (
	ItemKindMemo ItemKind = "memo"
	ItemKindLink ItemKind = "link"
)

// ContentItem はページに並ぶ小さなコンテンツ（メモ、リンク）を表す。
// Positionはデータベース側関数create_content_itemが採番する。
type ContentItem struct {
	ID        string
	PageID    string
	Kind      ItemKind
	Title     string
	Body      string
	URL       string
	Position  int
	CreatedAt time.Time
}
