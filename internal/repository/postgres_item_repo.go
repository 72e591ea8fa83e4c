package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/linkpage/internal/model"
)

// PostgresContentItemRepo はPostgreSQLを使用したコンテンツアイテムリポジトリ。
type PostgresContentItemRepo struct {
	db *sql.DB
}

// NewPostgresContentItemRepo はPostgresContentItemRepoを生成する。
func NewPostgresContentItemRepo(db *sql.DB) *PostgresContentItemRepo {
	return &PostgresContentItemRepo{db: db}
}

// Create はcreate_content_item関数でアイテムを作成し、採番済みのアイテムを返す。
// positionの採番はページ行のロック下で関数側が行う。
func (r *PostgresContentItemRepo) Create(ctx context.Context, item *model.ContentItem) (*model.ContentItem, error) {
	created := &model.ContentItem{}
	var kind string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, page_id, kind, title, body, url, position, created_at
		 FROM create_content_item($1, $2, $3, $4, $5)`,
		item.PageID, string(item.Kind), item.Title, item.Body, item.URL,
	).Scan(
		&created.ID, &created.PageID, &kind, &created.Title, &created.Body,
		&created.URL, &created.Position, &created.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, model.NewItemCreateFailedError()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create content item: %w", err)
	}

	created.Kind = model.ItemKind(kind)
	return created, nil
}

// ListByPageID はページのアイテムをposition昇順で返す。
func (r *PostgresContentItemRepo) ListByPageID(ctx context.Context, pageID string) ([]*model.ContentItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, page_id, kind, title, body, url, position, created_at
		 FROM content_items
		 WHERE page_id = $1
		 ORDER BY position`,
		pageID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list content items: %w", err)
	}
	defer rows.Close()

	items := make([]*model.ContentItem, 0)
	for rows.Next() {
		item := &model.ContentItem{}
		var kind string
		if err := rows.Scan(
			&item.ID, &item.PageID, &kind, &item.Title, &item.Body,
			&item.URL, &item.Position, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan content item: %w", err)
		}
		item.Kind = model.ItemKind(kind)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate content items: %w", err)
	}
	return items, nil
}

// DeleteByID はページに属する指定IDのアイテムを削除する。
func (r *PostgresContentItemRepo) DeleteByID(ctx context.Context, pageID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM content_items WHERE id = $1 AND page_id = $2`,
		id, pageID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete content item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ ContentItemRepository = (*PostgresContentItemRepo)(nil)
