package onboarding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/linkpage/internal/handle"
	"github.com/hitoshi/linkpage/internal/metrics"
	"github.com/hitoshi/linkpage/internal/model"
	"github.com/hitoshi/linkpage/internal/page"
	"github.com/hitoshi/linkpage/internal/repository"
)

// Service は初期設定の完了処理を提供する。
type Service struct {
	userRepo repository.UserRepository
	pageRepo repository.PageRepository
	metrics  metrics.MetricsCollector
	now      func() time.Time
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	userRepo repository.UserRepository,
	pageRepo repository.PageRepository,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		userRepo: userRepo,
		pageRepo: pageRepo,
		metrics:  collector,
		now:      time.Now,
	}
}

// Complete はハンドルを取得してプライマリページを作成し、ユーザーを初期設定完了にする。
// ページ作成とmetadata更新は同一トランザクションで行われる。
func (s *Service) Complete(ctx context.Context, userID, rawHandle, rawTitle string) (*model.Page, error) {
	h, err := handle.ValidateClaim(rawHandle)
	if err != nil {
		return nil, err
	}
	title, err := page.ValidateTitle(rawTitle)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	if user.Metadata.OnboardingComplete {
		return nil, model.NewAlreadyOnboardedError()
	}

	// 一意制約でも検出されるが、トランザクションを張る前に既知の重複を弾く
	exists, err := s.pageRepo.HandleExists(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("ハンドルの確認に失敗しました: %w", err)
	}
	if exists {
		return nil, model.NewHandleTakenError()
	}

	now := s.now()
	p := &model.Page{
		ID:        uuid.NewString(),
		UserID:    userID,
		Handle:    h,
		Title:     title,
		IsPublic:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	metadata := model.UserMetadata{
		OnboardingComplete: true,
		Role:               user.Metadata.Role,
	}
	if err := s.pageRepo.CreatePrimary(ctx, p, metadata); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordOnboardingCompleted()
	}
	slog.InfoContext(ctx, "初期設定が完了しました",
		slog.String("user_id", userID),
		slog.String("handle", h),
	)

	return p, nil
}
