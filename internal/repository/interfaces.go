// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/linkpage/internal/model"
	"github.com/hitoshi/linkpage/internal/social"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateMetadata はユーザーのmetadataを置き換える。
	UpdateMetadata(ctx context.Context, id string, metadata model.UserMetadata) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessions、pagesとその配下はCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// RecordLogin はidentityの最終ログイン日時を更新する。該当がない場合はfalseを返す。
	RecordLogin(ctx context.Context, id string, at time.Time) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// PageRepository はプロフィールページの永続化インターフェース。
type PageRepository interface {
	// FindByHandle は保存形式のハンドルでページを取得する。見つからない場合はnilを返す。
	FindByHandle(ctx context.Context, handle string) (*model.Page, error)

	// FindPrimaryByUserID はユーザーのプライマリページを取得する。見つからない場合はnilを返す。
	FindPrimaryByUserID(ctx context.Context, userID string) (*model.Page, error)

	// FindByID は指定IDのページを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Page, error)

	// CreatePrimary はプライマリページの作成とユーザーmetadataの更新を同一トランザクションで行う。
	// ハンドルが既に使われている場合はHANDLE_TAKENのAppErrorを返す。
	CreatePrimary(ctx context.Context, page *model.Page, metadata model.UserMetadata) error

	// Update はページのハンドル、タイトル、自己紹介、画像、公開設定を更新する。
	// ハンドルが既に使われている場合はHANDLE_TAKENのAppErrorを返す。
	Update(ctx context.Context, page *model.Page) error

	// HandleExists はハンドルが使用済みかを返す。
	HandleExists(ctx context.Context, handle string) (bool, error)
}

// SocialLinkRepository はページのSNSリンクの永続化インターフェース。
type SocialLinkRepository interface {
	// ListByPageID は保存順のプラットフォーム→識別子の対応表を返す。
	ListByPageID(ctx context.Context, pageID string) (*social.PersistedSocialMap, error)

	// ReplaceForPage はページのSNSリンクを対応表の内容で置き換える。
	ReplaceForPage(ctx context.Context, pageID string, links *social.PersistedSocialMap) error
}

// ContentItemRepository はページに並ぶコンテンツアイテムの永続化インターフェース。
type ContentItemRepository interface {
	// Create はcreate_content_item関数でアイテムを作成し、採番済みのアイテムを返す。
	// 関数が行を返さなかった場合はITEM_CREATE_FAILEDのAppErrorを返す。
	Create(ctx context.Context, item *model.ContentItem) (*model.ContentItem, error)

	// ListByPageID はページのアイテムをposition昇順で返す。
	ListByPageID(ctx context.Context, pageID string) ([]*model.ContentItem, error)

	// DeleteByID はページに属する指定IDのアイテムを削除する。
	// 該当がない場合はfalseを返す。
	DeleteByID(ctx context.Context, pageID, id string) (bool, error)
}
