// Package item はページに並ぶコンテンツアイテム（メモ、リンク）の管理機能を提供する。
package item

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/linkpage/internal/metrics"
	"github.com/hitoshi/linkpage/internal/model"
	"github.com/hitoshi/linkpage/internal/repository"
	"github.com/hitoshi/linkpage/internal/security"
)

const (
	// MaxMemoRunes はメモ本文の最大文字数。
	MaxMemoRunes = 280
	// MaxLinkTitleRunes はリンクの表示名の最大文字数。
	MaxLinkTitleRunes = 60
)

// CreateInput はアイテム作成の入力。
// memoはBody、linkはTitleとURLを使う。
type CreateInput struct {
	Kind  model.ItemKind
	Title string
	Body  string
	URL   string
}

// ItemService はコンテンツアイテムのサービス。
type ItemService struct {
	pageRepo  repository.PageRepository
	itemRepo  repository.ContentItemRepository
	guard     security.URLGuard
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
}

// NewItemService はItemServiceの新しいインスタンスを生成する。
func NewItemService(
	pageRepo repository.PageRepository,
	itemRepo repository.ContentItemRepository,
	guard security.URLGuard,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
) *ItemService {
	return &ItemService{
		pageRepo:  pageRepo,
		itemRepo:  itemRepo,
		guard:     guard,
		sanitizer: sanitizer,
		metrics:   collector,
	}
}

// Create はユーザーのプライマリページの末尾にアイテムを追加する。
func (s *ItemService) Create(ctx context.Context, userID string, in CreateInput) (*model.ContentItem, error) {
	item, err := s.buildItem(in)
	if err != nil {
		return nil, err
	}

	page, err := s.primaryPage(ctx, userID)
	if err != nil {
		return nil, err
	}
	item.PageID = page.ID

	created, err := s.itemRepo.Create(ctx, item)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordItemCreated(string(created.Kind))
	}
	slog.InfoContext(ctx, "アイテムを作成しました",
		slog.String("user_id", userID),
		slog.String("item_id", created.ID),
		slog.String("kind", string(created.Kind)),
		slog.Int("position", created.Position),
	)
	return created, nil
}

// buildItem は入力を検証し、保存するアイテムを組み立てる。
func (s *ItemService) buildItem(in CreateInput) (*model.ContentItem, error) {
	switch in.Kind {
	case model.ItemKindMemo:
		body := s.sanitizer.SanitizeText(in.Body)
		if body == "" {
			return nil, model.NewInvalidItemError("メモを入力してください")
		}
		if utf8.RuneCountInString(body) > MaxMemoRunes {
			return nil, model.NewInvalidItemError(fmt.Sprintf("メモは%d文字以内で入力してください", MaxMemoRunes))
		}
		return &model.ContentItem{Kind: model.ItemKindMemo, Body: body}, nil

	case model.ItemKindLink:
		title := s.sanitizer.SanitizeText(in.Title)
		if title == "" || utf8.RuneCountInString(title) > MaxLinkTitleRunes {
			return nil, model.NewInvalidItemError(fmt.Sprintf("リンクの表示名は1〜%d文字で入力してください", MaxLinkTitleRunes))
		}
		u := strings.TrimSpace(in.URL)
		if err := s.guard.ValidateURL(u); err != nil {
			return nil, err
		}
		return &model.ContentItem{Kind: model.ItemKindLink, Title: title, URL: u}, nil

	default:
		return nil, model.NewInvalidItemError(fmt.Sprintf("未対応の種別です: %s", in.Kind))
	}
}

// List はページのアイテムをposition昇順で返す。
func (s *ItemService) List(ctx context.Context, pageID string) ([]*model.ContentItem, error) {
	items, err := s.itemRepo.ListByPageID(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("アイテム一覧の取得に失敗しました: %w", err)
	}
	return items, nil
}

// Delete はユーザーのプライマリページからアイテムを削除する。
// 他人のページのアイテムや形式不正のIDはITEM_NOT_FOUNDとして扱う。
func (s *ItemService) Delete(ctx context.Context, userID, itemID string) error {
	if _, err := uuid.Parse(itemID); err != nil {
		return model.NewItemNotFoundError(itemID)
	}

	page, err := s.primaryPage(ctx, userID)
	if err != nil {
		return err
	}

	deleted, err := s.itemRepo.DeleteByID(ctx, page.ID, itemID)
	if err != nil {
		return fmt.Errorf("アイテムの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewItemNotFoundError(itemID)
	}

	slog.InfoContext(ctx, "アイテムを削除しました",
		slog.String("user_id", userID),
		slog.String("item_id", itemID),
	)
	return nil
}

func (s *ItemService) primaryPage(ctx context.Context, userID string) (*model.Page, error) {
	page, err := s.pageRepo.FindPrimaryByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プライマリページの取得に失敗しました: %w", err)
	}
	if page == nil {
		return nil, model.NewOnboardingPendingError()
	}
	return page, nil
}
