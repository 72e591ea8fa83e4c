package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/hitoshi/linkpage/internal/model"
)

// PostgresPageRepo はPostgreSQLを使用したページリポジトリ。
type PostgresPageRepo struct {
	db *sql.DB
}

// NewPostgresPageRepo はPostgresPageRepoを生成する。
func NewPostgresPageRepo(db *sql.DB) *PostgresPageRepo {
	return &PostgresPageRepo{db: db}
}

const pageColumns = `id, user_id, handle, title, bio, image_url, is_public, is_primary, created_at, updated_at`

func scanPage(row *sql.Row) (*model.Page, error) {
	page := &model.Page{}
	err := row.Scan(
		&page.ID, &page.UserID, &page.Handle, &page.Title, &page.Bio, &page.ImageURL,
		&page.IsPublic, &page.IsPrimary, &page.CreatedAt, &page.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (r *PostgresPageRepo) findOne(ctx context.Context, op, where string, arg any) (*model.Page, error) {
	page, err := scanPage(r.db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE `+where,
		arg,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find page by %s: %w", op, err)
	}
	return page, nil
}

// FindByHandle は保存形式のハンドルでページを取得する。見つからない場合はnilを返す。
func (r *PostgresPageRepo) FindByHandle(ctx context.Context, handle string) (*model.Page, error) {
	return r.findOne(ctx, "handle", `handle = $1`, handle)
}

// FindPrimaryByUserID はユーザーのプライマリページを取得する。見つからない場合はnilを返す。
func (r *PostgresPageRepo) FindPrimaryByUserID(ctx context.Context, userID string) (*model.Page, error) {
	return r.findOne(ctx, "user", `user_id = $1 AND is_primary`, userID)
}

// FindByID は指定IDのページを取得する。見つからない場合はnilを返す。
func (r *PostgresPageRepo) FindByID(ctx context.Context, id string) (*model.Page, error) {
	return r.findOne(ctx, "ID", `id = $1`, id)
}

// CreatePrimary はプライマリページの作成とユーザーmetadataの更新を同一トランザクションで行う。
func (r *PostgresPageRepo) CreatePrimary(ctx context.Context, page *model.Page, metadata model.UserMetadata) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pages (id, user_id, handle, title, bio, image_url, is_public, is_primary, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8, $9)`,
		page.ID, page.UserID, page.Handle, page.Title, page.Bio, page.ImageURL,
		page.IsPublic, page.CreatedAt, page.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.NewHandleTakenError()
		}
		return fmt.Errorf("failed to insert page: %w", err)
	}
	page.IsPrimary = true

	if err := updateUserMetadata(ctx, tx, page.UserID, metadata); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Update はページのハンドル、タイトル、自己紹介、画像、公開設定を更新する。
func (r *PostgresPageRepo) Update(ctx context.Context, page *model.Page) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE pages
		 SET handle = $2, title = $3, bio = $4, image_url = $5, is_public = $6, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		page.ID, page.Handle, page.Title, page.Bio, page.ImageURL, page.IsPublic,
	).Scan(&page.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.NewPageNotFoundError()
	}
	if err != nil {
		if isUniqueViolation(err) {
			return model.NewHandleTakenError()
		}
		return fmt.Errorf("failed to update page: %w", err)
	}
	return nil
}

// HandleExists はハンドルが使用済みかを返す。
func (r *PostgresPageRepo) HandleExists(ctx context.Context, handle string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pages WHERE handle = $1)`,
		handle,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check handle: %w", err)
	}
	return exists, nil
}

// isUniqueViolation はPostgreSQLの一意制約違反かを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.UniqueViolation
}

// compile-time interface check
var _ PageRepository = (*PostgresPageRepo)(nil)
