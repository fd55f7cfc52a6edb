package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/trackman/internal/model"
)

// PostgresProjectRepo はPostgreSQLを使用したプロジェクトリポジトリ。
type PostgresProjectRepo struct {
	db *sql.DB
}

// NewPostgresProjectRepo はPostgresProjectRepoを生成する。
func NewPostgresProjectRepo(db *sql.DB) *PostgresProjectRepo {
	return &PostgresProjectRepo{db: db}
}

// FindByKey は指定キーのプロジェクトを取得する。見つからない場合はnilを返す。
func (r *PostgresProjectRepo) FindByKey(ctx context.Context, key string) (*model.Project, error) {
	project := &model.Project{}

	err := r.db.QueryRowContext(ctx,
		`SELECT key, name, color, type FROM projects WHERE key = $1`,
		key,
	).Scan(&project.Key, &project.Name, &project.Color, &project.Type)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}

	return project, nil
}

// ListByKeys は指定キー群のプロジェクトをまとめて取得する。
func (r *PostgresProjectRepo) ListByKeys(ctx context.Context, keys []string) ([]*model.Project, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT key, name, color, type FROM projects WHERE key = ANY($1)`,
		pq.Array(keys),
	)
	if err != nil {
		return nil, fmt.Errorf("プロジェクト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		project := &model.Project{}
		if err := rows.Scan(&project.Key, &project.Name, &project.Color, &project.Type); err != nil {
			return nil, fmt.Errorf("プロジェクト行のスキャンに失敗しました: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("プロジェクト一覧の読み取りに失敗しました: %w", err)
	}

	return projects, nil
}
