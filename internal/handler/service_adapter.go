package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/linkpage/internal/auth"
	"github.com/hitoshi/linkpage/internal/database"
	"github.com/hitoshi/linkpage/internal/item"
	"github.com/hitoshi/linkpage/internal/onboarding"
	"github.com/hitoshi/linkpage/internal/page"
	"github.com/hitoshi/linkpage/internal/user"
)

// HealthChecker は依存先の疎通を確認するインターフェース。
type HealthChecker interface {
	Check(ctx context.Context) error
}

// DBHealthChecker は *sql.DB を HealthChecker に適合させるアダプタ。
type DBHealthChecker struct {
	db      *sql.DB
	timeout time.Duration
}

// NewDBHealthChecker はDBHealthCheckerを生成する。
func NewDBHealthChecker(db *sql.DB, timeout time.Duration) *DBHealthChecker {
	return &DBHealthChecker{db: db, timeout: timeout}
}

// Check はデータベースにPingする。
func (c *DBHealthChecker) Check(ctx context.Context) error {
	return database.Ping(ctx, c.db, c.timeout)
}

// HealthHandler はヘルスチェックを返す。checkerがnilなら常にok。
// GET /health
func HealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		if checker != nil {
			if err := checker.Check(r.Context()); err != nil {
				slog.ErrorContext(r.Context(), "health check failed", slog.String("error", err.Error()))
				status = http.StatusServiceUnavailable
				body["status"] = "unavailable"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// --- compile-time interface checks ---

var _ HealthChecker = (*DBHealthChecker)(nil)
var _ AuthServiceInterface = (*auth.Service)(nil)
var _ PageServiceInterface = (*page.Service)(nil)
var _ OnboardingServiceInterface = (*onboarding.Service)(nil)
var _ ItemServiceInterface = (*item.ItemService)(nil)
var _ page.ItemLister = (*item.ItemService)(nil)
var _ UserServiceInterface = (*user.Service)(nil)
