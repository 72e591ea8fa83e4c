package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/linkpage/internal/model"
)

// PageCache はハンドル単位で公開ページをキャッシュするストアのインターフェース。
// Getはキャッシュに存在しない場合nil, nilを返す。
type PageCache interface {
	Get(ctx context.Context, handle string) (*model.Page, error)
	Set(ctx context.Context, page *model.Page) error
	Delete(ctx context.Context, handles ...string) error
}

const pageCacheKeyPrefix = "linkpage:page:"

// RedisPageCache はRedisを使用したPageCache実装。
type RedisPageCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisPageCache はRedisPageCacheを生成する。
func NewRedisPageCache(client redis.UniversalClient, ttl time.Duration) *RedisPageCache {
	return &RedisPageCache{client: client, ttl: ttl}
}

// NewRedisClient はREDIS_URL形式の接続文字列からクライアントを生成する。
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

func pageCacheKey(handle string) string {
	return pageCacheKeyPrefix + handle
}

// pageCacheEntry はキャッシュ上のJSON形式。
type pageCacheEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Handle    string    `json:"handle"`
	Title     string    `json:"title"`
	Bio       string    `json:"bio"`
	ImageURL  string    `json:"imageUrl"`
	IsPublic  bool      `json:"isPublic"`
	IsPrimary bool      `json:"isPrimary"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Get はキャッシュからページを取得する。
func (c *RedisPageCache) Get(ctx context.Context, handle string) (*model.Page, error) {
	raw, err := c.client.Get(ctx, pageCacheKey(handle)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry pageCacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cached page: %w", err)
	}
	return &model.Page{
		ID:        entry.ID,
		UserID:    entry.UserID,
		Handle:    entry.Handle,
		Title:     entry.Title,
		Bio:       entry.Bio,
		ImageURL:  entry.ImageURL,
		IsPublic:  entry.IsPublic,
		IsPrimary: entry.IsPrimary,
		CreatedAt: entry.CreatedAt,
		UpdatedAt: entry.UpdatedAt,
	}, nil
}

// Set はページをTTL付きでキャッシュする。
func (c *RedisPageCache) Set(ctx context.Context, page *model.Page) error {
	raw, err := json.Marshal(pageCacheEntry{
		ID:        page.ID,
		UserID:    page.UserID,
		Handle:    page.Handle,
		Title:     page.Title,
		Bio:       page.Bio,
		ImageURL:  page.ImageURL,
		IsPublic:  page.IsPublic,
		IsPrimary: page.IsPrimary,
		CreatedAt: page.CreatedAt,
		UpdatedAt: page.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode page: %w", err)
	}
	if err := c.client.Set(ctx, pageCacheKey(page.Handle), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete は指定ハンドルのキャッシュを削除する。
func (c *RedisPageCache) Delete(ctx context.Context, handles ...string) error {
	if len(handles) == 0 {
		return nil
	}
	keys := make([]string, 0, len(handles))
	for _, h := range handles {
		keys = append(keys, pageCacheKey(h))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// CachedPageRepo はFindByHandleにリードスルーキャッシュを挟むPageRepositoryのデコレータ。
// キャッシュの障害はログに記録し、データベースの結果をそのまま返す。
type CachedPageRepo struct {
	PageRepository
	cache  PageCache
	logger *slog.Logger
}

// NewCachedPageRepo はCachedPageRepoを生成する。
func NewCachedPageRepo(inner PageRepository, cache PageCache, logger *slog.Logger) *CachedPageRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedPageRepo{PageRepository: inner, cache: cache, logger: logger}
}

// FindByHandle はキャッシュを優先してページを取得する。
// 見つからなかった結果はキャッシュしない。
func (r *CachedPageRepo) FindByHandle(ctx context.Context, handle string) (*model.Page, error) {
	cached, err := r.cache.Get(ctx, handle)
	if err != nil {
		r.logger.WarnContext(ctx, "page cache get failed",
			slog.String("handle", handle),
			slog.String("error", err.Error()),
		)
	}
	if cached != nil {
		return cached, nil
	}

	page, err := r.PageRepository.FindByHandle(ctx, handle)
	if err != nil || page == nil {
		return page, err
	}

	if err := r.cache.Set(ctx, page); err != nil {
		r.logger.WarnContext(ctx, "page cache set failed",
			slog.String("handle", handle),
			slog.String("error", err.Error()),
		)
	}
	return page, nil
}

// CreatePrimary はページを作成し、同じハンドルのキャッシュを破棄する。
func (r *CachedPageRepo) CreatePrimary(ctx context.Context, page *model.Page, metadata model.UserMetadata) error {
	if err := r.PageRepository.CreatePrimary(ctx, page, metadata); err != nil {
		return err
	}
	r.Evict(ctx, page.Handle)
	return nil
}

// Update はページを更新し、変更前後のハンドルのキャッシュを破棄する。
func (r *CachedPageRepo) Update(ctx context.Context, page *model.Page) error {
	handles := []string{page.Handle}
	previous, err := r.PageRepository.FindByID(ctx, page.ID)
	if err != nil {
		return err
	}
	if previous != nil && previous.Handle != page.Handle {
		handles = append(handles, previous.Handle)
	}

	if err := r.PageRepository.Update(ctx, page); err != nil {
		return err
	}
	r.Evict(ctx, handles...)
	return nil
}

// Evict は指定ハンドルのキャッシュを破棄する。退会などページが外部で削除された場合に使う。
func (r *CachedPageRepo) Evict(ctx context.Context, handles ...string) {
	if err := r.cache.Delete(ctx, handles...); err != nil {
		r.logger.WarnContext(ctx, "page cache delete failed",
			slog.Any("handles", handles),
			slog.String("error", err.Error()),
		)
	}
}

// compile-time interface check
var (
	_ PageRepository = (*CachedPageRepo)(nil)
	_ PageCache      = (*RedisPageCache)(nil)
)
