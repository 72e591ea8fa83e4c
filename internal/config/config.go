// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// OIDC
	OIDCIssuerURL    string `env:"OIDC_ISSUER_URL"    envDefault:"https://accounts.google.com"`
	OIDCClientID     string `env:"OIDC_CLIENT_ID,required,notEmpty"`
	OIDCClientSecret string `env:"OIDC_CLIENT_SECRET,required,notEmpty"`
	OIDCRedirectURL  string `env:"OIDC_REDIRECT_URL,required,notEmpty"`

	// Session
	SessionMaxAge          int           `env:"SESSION_MAX_AGE"          envDefault:"86400"`
	SessionCleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"1h"`

	// Cache
	RedisURL     string        `env:"REDIS_URL"`
	PageCacheTTL time.Duration `env:"PAGE_CACHE_TTL" envDefault:"5m"`

	// Rate Limit（req/min）
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitWrite   int `env:"RATE_LIMIT_WRITE"   envDefault:"30"`

	// Image
	ImageProbeTimeout time.Duration `env:"IMAGE_PROBE_TIMEOUT" envDefault:"5s"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL,required,notEmpty"`

	// Cookie
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("required environment variables are not set or invalid: %w", err)
	}

	if _, err := cfg.BaseOrigin(); err != nil {
		return nil, err
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.sanitize()

	return cfg, nil
}

// BaseOrigin はBASE_URLをパースして返す。戻り先パスの同一オリジン判定に使う。
func (c *Config) BaseOrigin() (*url.URL, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("BASE_URL must be an absolute URL: %q", c.BaseURL)
	}
	return u, nil
}

// sanitize は範囲外の値をデフォルトに戻す。
func (c *Config) sanitize() {
	if c.SessionMaxAge <= 0 {
		c.SessionMaxAge = 86400
	}
	if c.SessionCleanupInterval <= 0 {
		c.SessionCleanupInterval = time.Hour
	}
	if c.PageCacheTTL <= 0 {
		c.PageCacheTTL = 5 * time.Minute
	}
	if c.RateLimitGeneral <= 0 {
		c.RateLimitGeneral = 120
	}
	if c.RateLimitWrite <= 0 {
		c.RateLimitWrite = 30
	}
	if c.ImageProbeTimeout <= 0 {
		c.ImageProbeTimeout = 5 * time.Second
	}
}
