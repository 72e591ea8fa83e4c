// Package page はプロフィールページの閲覧と設定変更を提供する。
package page

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/linkpage/internal/handle"
	"github.com/hitoshi/linkpage/internal/metrics"
	"github.com/hitoshi/linkpage/internal/model"
	"github.com/hitoshi/linkpage/internal/repository"
	"github.com/hitoshi/linkpage/internal/reqcache"
	"github.com/hitoshi/linkpage/internal/security"
	"github.com/hitoshi/linkpage/internal/social"
	"github.com/hitoshi/linkpage/internal/visibility"
)

// View はページ描画に必要な情報をまとめたもの。
type View struct {
	Page        *model.Page
	Social      *social.PersistedSocialMap
	SocialLinks []social.LinkItem
	Items       []*model.ContentItem
	IsOwner     bool
}

// SameAs はJSON-LDのsameAsに載せるSNSプロフィールURLを返す。
func (v *View) SameAs() []string {
	out := make([]string, 0, len(v.SocialLinks))
	for _, l := range v.SocialLinks {
		out = append(out, l.Href)
	}
	return out
}

// SettingsInput はページ設定フォームの入力。
type SettingsInput struct {
	Handle   string
	Title    string
	Bio      string
	ImageURL string
	IsPublic bool
}

// ItemLister はページに並ぶアイテムをposition昇順で返す。item.ItemServiceが実装する。
type ItemLister interface {
	List(ctx context.Context, pageID string) ([]*model.ContentItem, error)
}

// Service はページのサービス層。
type Service struct {
	pageRepo   repository.PageRepository
	socialRepo repository.SocialLinkRepository
	items      ItemLister
	guard      security.URLGuard
	prober     security.ImageProber
	sanitizer  security.TextSanitizer
	metrics    metrics.MetricsCollector
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	pageRepo repository.PageRepository,
	socialRepo repository.SocialLinkRepository,
	items ItemLister,
	guard security.URLGuard,
	prober security.ImageProber,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		pageRepo:   pageRepo,
		socialRepo: socialRepo,
		items:      items,
		guard:      guard,
		prober:     prober,
		sanitizer:  sanitizer,
		metrics:    collector,
	}
}

func primaryHandleKey(userID string) string {
	return "primary-handle:" + userID
}

// GetVisiblePage はURLパスのハンドルから閲覧者に見せてよいページを返す。
// 判定順は ハンドル正規化 → 検索 → 非オーナーに対する公開設定。
// 不正なハンドル、未登録、非公開はいずれもPAGE_NOT_FOUNDとして扱う。
func (s *Service) GetVisiblePage(ctx context.Context, rawHandle, viewerUserID string) (*View, error) {
	h, ok := handle.NormalizeStoredHandleFromPath(rawHandle)
	if !ok {
		return nil, model.NewPageNotFoundError()
	}

	p, err := s.pageRepo.FindByHandle(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("ページの取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPageNotFoundError()
	}

	isOwner := visibility.IsOwner(p, viewerUserID)
	if !isOwner && !visibility.CanVisitorView(p) {
		s.recordPageView(metrics.VisibilityHidden)
		return nil, model.NewPageNotFoundError()
	}

	view := &View{Page: p, IsOwner: isOwner}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		links, err := s.socialRepo.ListByPageID(gctx, p.ID)
		if err != nil {
			return fmt.Errorf("SNSリンクの取得に失敗しました: %w", err)
		}
		view.Social = links
		view.SocialLinks = social.BuildConnectedSocialLinkItems(social.SerializePersistedSocialItems(links))
		return nil
	})
	g.Go(func() error {
		items, err := s.items.List(gctx, p.ID)
		if err != nil {
			return err
		}
		view.Items = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if isOwner {
		s.recordPageView(metrics.VisibilityOwner)
	} else {
		s.recordPageView(metrics.VisibilityPublic)
	}
	return view, nil
}

// PrimaryHandle はユーザーのプライマリページのハンドルを返す。
// ページが無い場合は空文字列を返す。結果はリクエスト内でメモ化される。
func (s *Service) PrimaryHandle(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", nil
	}
	return reqcache.Load(ctx, primaryHandleKey(userID), func(ctx context.Context) (string, error) {
		p, err := s.pageRepo.FindPrimaryByUserID(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("プライマリページの取得に失敗しました: %w", err)
		}
		if p == nil {
			return "", nil
		}
		return p.Handle, nil
	})
}

// PrimaryPage はユーザーのプライマリページを返す。
// 初期設定が済んでいない場合はONBOARDING_PENDINGを返す。
func (s *Service) PrimaryPage(ctx context.Context, userID string) (*model.Page, error) {
	p, err := s.pageRepo.FindPrimaryByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プライマリページの取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewOnboardingPendingError()
	}
	return p, nil
}

// UpdateSettings はプライマリページの設定を更新する。
// 画像URLは変更された場合のみ外部に問い合わせて検証する。
func (s *Service) UpdateSettings(ctx context.Context, userID string, in SettingsInput) (*model.Page, error) {
	p, err := s.PrimaryPage(ctx, userID)
	if err != nil {
		return nil, err
	}

	h, err := handle.ValidateClaim(in.Handle)
	if err != nil {
		return nil, err
	}
	title, err := ValidateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	bio := s.sanitizer.SanitizeText(in.Bio)
	if utf8.RuneCountInString(bio) > MaxBioRunes {
		return nil, model.NewInvalidBioError(MaxBioRunes)
	}

	imageURL := strings.TrimSpace(in.ImageURL)
	if imageURL != "" && imageURL != p.ImageURL {
		if err := s.guard.ValidateImageURL(imageURL); err != nil {
			return nil, err
		}
		if err := s.prober.Probe(ctx, imageURL); err != nil {
			return nil, err
		}
	}

	prevHandle := p.Handle
	updated := *p
	updated.Handle = h
	updated.Title = title
	updated.Bio = bio
	updated.ImageURL = imageURL
	updated.IsPublic = in.IsPublic

	if err := s.pageRepo.Update(ctx, &updated); err != nil {
		return nil, err
	}
	reqcache.Forget(ctx, primaryHandleKey(userID))

	if ResolveShouldTrackHandleUpdateFeature(prevHandle, updated.Handle) {
		if s.metrics != nil {
			s.metrics.RecordHandleUpdate()
		}
		slog.InfoContext(ctx, "ハンドルを変更しました",
			slog.String("user_id", userID),
			slog.String("previous_handle", prevHandle),
			slog.String("handle", updated.Handle),
		)
	}

	return &updated, nil
}

// UpdateSocialLinks はプライマリページのSNSリンクを置き換える。
func (s *Service) UpdateSocialLinks(ctx context.Context, userID string, links *social.PersistedSocialMap) error {
	p, err := s.PrimaryPage(ctx, userID)
	if err != nil {
		return err
	}
	if links == nil {
		links = social.NewPersistedSocialMap()
	}
	if err := s.socialRepo.ReplaceForPage(ctx, p.ID, links); err != nil {
		return fmt.Errorf("SNSリンクの更新に失敗しました: %w", err)
	}

	slog.InfoContext(ctx, "SNSリンクを更新しました",
		slog.String("user_id", userID),
		slog.Int("count", links.Len()),
	)
	return nil
}

func (s *Service) recordPageView(v string) {
	if s.metrics != nil {
		s.metrics.RecordPageView(v)
	}
}
