package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/linkpage/internal/model"
)

// PostgresIdentityRepo はIdPのsubjectとユーザーの対応をidentitiesテーブルで管理する。
type PostgresIdentityRepo struct {
	db *sql.DB
}

func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

// FindByProviderAndProviderUserID はproviderとsubjectの組でidentityを引く。
// 見つからない場合はnil, nilを返す。
func (r *PostgresIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	var (
		identity  model.Identity
		lastLogin sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, provider_user_id, created_at, last_login_at
		 FROM identities
		 WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID,
	).Scan(&identity.ID, &identity.UserID, &identity.Provider, &identity.ProviderUserID, &identity.CreatedAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity for provider %s: %w", provider, err)
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		identity.LastLoginAt = &t
	}
	return &identity, nil
}

// RecordLogin はlast_login_atをatで上書きする。
func (r *PostgresIdentityRepo) RecordLogin(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE identities SET last_login_at = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record login: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
