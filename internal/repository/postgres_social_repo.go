package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/linkpage/internal/social"
)

// PostgresSocialLinkRepo はPostgreSQLを使用したSNSリンクリポジトリ。
type PostgresSocialLinkRepo struct {
	db *sql.DB
}

// NewPostgresSocialLinkRepo はPostgresSocialLinkRepoを生成する。
func NewPostgresSocialLinkRepo(db *sql.DB) *PostgresSocialLinkRepo {
	return &PostgresSocialLinkRepo{db: db}
}

// ListByPageID は保存順のプラットフォーム→識別子の対応表を返す。
// 未登録の場合は空の対応表を返す。
func (r *PostgresSocialLinkRepo) ListByPageID(ctx context.Context, pageID string) (*social.PersistedSocialMap, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT platform, identifier FROM page_social_links
		 WHERE page_id = $1
		 ORDER BY position`,
		pageID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list social links: %w", err)
	}
	defer rows.Close()

	links := social.NewPersistedSocialMap()
	for rows.Next() {
		var platform, identifier string
		if err := rows.Scan(&platform, &identifier); err != nil {
			return nil, fmt.Errorf("failed to scan social link: %w", err)
		}
		links.Set(social.Platform(platform), identifier)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate social links: %w", err)
	}
	return links, nil
}

// ReplaceForPage はページのSNSリンクを対応表の内容で置き換える。
// 対応表の挿入順をpositionとして保存する。
func (r *PostgresSocialLinkRepo) ReplaceForPage(ctx context.Context, pageID string, links *social.PersistedSocialMap) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM page_social_links WHERE page_id = $1`, pageID); err != nil {
		return fmt.Errorf("failed to clear social links: %w", err)
	}

	for i, item := range social.SerializePersistedSocialItems(links) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO page_social_links (page_id, platform, identifier, position)
			 VALUES ($1, $2, $3, $4)`,
			pageID, string(item.Platform), item.Username, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert social link %s: %w", item.Platform, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SocialLinkRepository = (*PostgresSocialLinkRepo)(nil)
