// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/linkpage/internal/model"
	"github.com/hitoshi/linkpage/internal/repository"
)

// PageCacheEvictor は退会したユーザーのページを共有キャッシュから取り除く。
type PageCacheEvictor interface {
	Evict(ctx context.Context, handles ...string)
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	pageRepo    repository.PageRepository
	evictor     PageCacheEvictor
}

// NewService はServiceの新しいインスタンスを生成する。
// evictorは共有キャッシュを使わない構成ではnilでよい。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	pageRepo repository.PageRepository,
	evictor PageCacheEvictor,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		pageRepo:    pageRepo,
		evictor:     evictor,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: sessions → user（+ CASCADE: identities, pages, page_social_links, content_items）
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	// 削除後はハンドルを引けないため先に控えておく
	var handle string
	if s.pageRepo != nil {
		page, err := s.pageRepo.FindPrimaryByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("ページの取得に失敗しました: %w", err)
		}
		if page != nil {
			handle = page.Handle
		}
	}

	slog.InfoContext(ctx, "退会処理を開始します",
		slog.String("user_id", userID),
	)

	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	if s.evictor != nil && handle != "" {
		s.evictor.Evict(ctx, handle)
	}

	slog.InfoContext(ctx, "退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
