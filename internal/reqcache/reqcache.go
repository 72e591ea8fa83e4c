// Package reqcache はリクエスト単位のメモ化を提供する。
// キャッシュはリクエストのcontextに格納され、リクエスト終了とともに破棄される。
// 同一キーの並行読み込みはsingleflightで1回にまとめる。
package reqcache

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"
)

type contextKey struct{}

// Cache はリクエスト単位のキー値キャッシュ。
// エラーになった読み込み結果は保持しない。
type Cache struct {
	mu     sync.Mutex
	values map[string]any
	group  singleflight.Group
}

// New は空のCacheを生成する。
func New() *Cache {
	return &Cache{values: make(map[string]any)}
}

// WithCache はCacheを格納したcontextを返す。
func WithCache(ctx context.Context, c *Cache) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext はcontextに格納されたCacheを返す。未設定の場合はnilを返す。
func FromContext(ctx context.Context) *Cache {
	c, _ := ctx.Value(contextKey{}).(*Cache)
	return c
}

// Middleware はリクエストごとに新しいCacheをcontextに格納する。
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithCache(r.Context(), New())))
	})
}

// Load はキーに対応する値をキャッシュから返し、なければloadで読み込んで保持する。
// contextにCacheがない場合は毎回loadを呼ぶ。
func Load[T any](ctx context.Context, key string, load func(context.Context) (T, error)) (T, error) {
	c := FromContext(ctx)
	if c == nil {
		return load(ctx)
	}

	c.mu.Lock()
	if v, ok := c.values[key]; ok {
		c.mu.Unlock()
		out, _ := v.(T)
		return out, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return value, err
		}
		c.mu.Lock()
		c.values[key] = value
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}

// Forget はキーの値を破棄する。同一リクエスト内で更新した値を読み直す場合に使う。
func Forget(ctx context.Context, key string) {
	c := FromContext(ctx)
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.values, key)
	c.mu.Unlock()
	c.group.Forget(key)
}
