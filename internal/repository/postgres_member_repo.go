package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/trackman/internal/model"
)

// PostgresMemberRepo はPostgreSQLを使用したメンバーリポジトリ。
type PostgresMemberRepo struct {
	db *sql.DB
}

// NewPostgresMemberRepo はPostgresMemberRepoを生成する。
func NewPostgresMemberRepo(db *sql.DB) *PostgresMemberRepo {
	return &PostgresMemberRepo{db: db}
}

// FindByName は正準名でメンバーを取得する。見つからない場合はnilを返す。
func (r *PostgresMemberRepo) FindByName(ctx context.Context, name string) (*model.Member, error) {
	member := &model.Member{}

	err := r.db.QueryRowContext(ctx,
		`SELECT name, created_at FROM members WHERE name = $1`,
		name,
	).Scan(&member.Name, &member.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("メンバーの取得に失敗しました: %w", err)
	}

	return member, nil
}

// FindByNormalizedName は正規化済みの名前で正準名を大文字小文字無視で検索する。
func (r *PostgresMemberRepo) FindByNormalizedName(ctx context.Context, normalized string) (*model.Member, error) {
	member := &model.Member{}

	err := r.db.QueryRowContext(ctx,
		`SELECT name, created_at FROM members WHERE lower(btrim(name)) = $1`,
		normalized,
	).Scan(&member.Name, &member.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("正規化名によるメンバーの検索に失敗しました: %w", err)
	}

	return member, nil
}

// FindByAlias は正規化済みエイリアスでメンバーを検索する。見つからない場合はnilを返す。
func (r *PostgresMemberRepo) FindByAlias(ctx context.Context, alias string) (*model.Member, error) {
	member := &model.Member{}

	err := r.db.QueryRowContext(ctx,
		`SELECT m.name, m.created_at
		 FROM members m
		 JOIN member_aliases a ON a.member_name = m.name
		 WHERE a.alias = $1`,
		alias,
	).Scan(&member.Name, &member.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("エイリアスによるメンバーの検索に失敗しました: %w", err)
	}

	return member, nil
}
