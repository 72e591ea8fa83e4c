package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/linkpage/internal/model"
)

var errTest = errors.New("test error")

// fakePageCache はメモリ上のPageCache実装。
type fakePageCache struct {
	pages   map[string]*model.Page
	getErr  error
	setErr  error
	deleted []string
}

func newFakePageCache() *fakePageCache {
	return &fakePageCache{pages: make(map[string]*model.Page)}
}

func (c *fakePageCache) Get(_ context.Context, handle string) (*model.Page, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.pages[handle], nil
}

func (c *fakePageCache) Set(_ context.Context, page *model.Page) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.pages[page.Handle] = page
	return nil
}

func (c *fakePageCache) Delete(_ context.Context, handles ...string) error {
	for _, h := range handles {
		delete(c.pages, h)
	}
	c.deleted = append(c.deleted, handles...)
	return nil
}

// stubPageRepo はPageRepositoryのテスト用実装。
type stubPageRepo struct {
	PageRepository
	byHandle    map[string]*model.Page
	byID        map[string]*model.Page
	findCalls   int
	updateCalls int
}

func (r *stubPageRepo) FindByHandle(_ context.Context, handle string) (*model.Page, error) {
	r.findCalls++
	return r.byHandle[handle], nil
}

func (r *stubPageRepo) FindByID(_ context.Context, id string) (*model.Page, error) {
	return r.byID[id], nil
}

func (r *stubPageRepo) Update(_ context.Context, page *model.Page) error {
	r.updateCalls++
	return nil
}

func (r *stubPageRepo) CreatePrimary(_ context.Context, page *model.Page, _ model.UserMetadata) error {
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestCachedPageRepo_FindByHandle_ReadThrough(t *testing.T) {
	page := &model.Page{ID: "p1", Handle: "@alice", Title: "Alice"}
	inner := &stubPageRepo{byHandle: map[string]*model.Page{"@alice": page}}
	cache := newFakePageCache()
	repo := NewCachedPageRepo(inner, cache, discardLogger())

	got, err := repo.FindByHandle(context.Background(), "@alice")
	require.NoError(t, err)
	assert.Equal(t, page, got)

	got, err = repo.FindByHandle(context.Background(), "@alice")
	require.NoError(t, err)
	assert.Equal(t, page, got)
	assert.Equal(t, 1, inner.findCalls, "2回目はキャッシュから返る")
}

func TestCachedPageRepo_FindByHandle_NotFoundIsNotCached(t *testing.T) {
	inner := &stubPageRepo{byHandle: map[string]*model.Page{}}
	cache := newFakePageCache()
	repo := NewCachedPageRepo(inner, cache, discardLogger())

	got, err := repo.FindByHandle(context.Background(), "@ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, cache.pages)
}

func TestCachedPageRepo_FindByHandle_CacheErrorsFallThrough(t *testing.T) {
	page := &model.Page{ID: "p1", Handle: "@alice"}
	inner := &stubPageRepo{byHandle: map[string]*model.Page{"@alice": page}}
	cache := newFakePageCache()
	cache.getErr = errTest
	cache.setErr = errTest
	repo := NewCachedPageRepo(inner, cache, discardLogger())

	got, err := repo.FindByHandle(context.Background(), "@alice")
	require.NoError(t, err)
	assert.Equal(t, page, got)
}

func TestCachedPageRepo_Update_EvictsOldAndNewHandles(t *testing.T) {
	previous := &model.Page{ID: "p1", Handle: "@alice"}
	inner := &stubPageRepo{byID: map[string]*model.Page{"p1": previous}}
	cache := newFakePageCache()
	cache.pages["@alice"] = previous
	repo := NewCachedPageRepo(inner, cache, discardLogger())

	err := repo.Update(context.Background(), &model.Page{ID: "p1", Handle: "@alice2"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.updateCalls)
	assert.ElementsMatch(t, []string{"@alice2", "@alice"}, cache.deleted)
	assert.NotContains(t, cache.pages, "@alice")
}

func TestCachedPageRepo_CreatePrimary_Evicts(t *testing.T) {
	cache := newFakePageCache()
	repo := NewCachedPageRepo(&stubPageRepo{}, cache, discardLogger())

	err := repo.CreatePrimary(context.Background(), &model.Page{ID: "p1", Handle: "@alice"}, model.UserMetadata{})
	require.NoError(t, err)
	assert.Equal(t, []string{"@alice"}, cache.deleted)
}

func TestRedisPageCache_RoundTrip(t *testing.T) {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL が未設定のためスキップ")
	}
	client, err := NewRedisClient(redisURL)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redisに接続できません（スキップ）: %v", err)
	}

	cache := NewRedisPageCache(client, time.Minute)
	page := &model.Page{
		ID: "p1", UserID: "u1", Handle: "@redistest", Title: "T", IsPublic: true,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, cache.Set(ctx, page))

	got, err := cache.Get(ctx, "@redistest")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, page.Title, got.Title)
	assert.True(t, page.CreatedAt.Equal(got.CreatedAt))

	require.NoError(t, cache.Delete(ctx, "@redistest"))
	got, err = cache.Get(ctx, "@redistest")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient("not-a-redis-url")
	assert.Error(t, err)
}
