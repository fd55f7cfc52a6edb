package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/trackman/internal/model"
)

// PostgresIdempotencyRepo はPostgreSQLを使用した冪等性レコードリポジトリ。
type PostgresIdempotencyRepo struct {
	db *sql.DB
}

// NewPostgresIdempotencyRepo はPostgresIdempotencyRepoを生成する。
func NewPostgresIdempotencyRepo(db *sql.DB) *PostgresIdempotencyRepo {
	return &PostgresIdempotencyRepo{db: db}
}

// Find は(scope, member, key)で未失効のレコードを取得する。
// 見つからない、または失効済みの場合はnilを返す。
func (r *PostgresIdempotencyRepo) Find(ctx context.Context, scope, member, key string, now time.Time) (*model.IdempotencyRecord, error) {
	record := &model.IdempotencyRecord{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, scope, member, key, status, body, expires_at, created_at
		 FROM idempotency_records
		 WHERE scope = $1 AND member = $2 AND key = $3 AND expires_at > $4`,
		scope, member, key, now,
	).Scan(
		&record.ID, &record.Scope, &record.Member, &record.Key,
		&record.Status, &record.Body, &record.ExpiresAt, &record.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("冪等性レコードの取得に失敗しました: %w", err)
	}

	return record, nil
}

// Upsert はレコードを保存する。同一キーの既存レコードは上書きする（後勝ち）。
func (r *PostgresIdempotencyRepo) Upsert(ctx context.Context, record *model.IdempotencyRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO idempotency_records
		 (id, scope, member, key, status, body, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 ON CONFLICT (scope, member, key)
		 DO UPDATE SET id = EXCLUDED.id, status = EXCLUDED.status,
		               body = EXCLUDED.body, expires_at = EXCLUDED.expires_at,
		               created_at = now()`,
		record.ID, record.Scope, record.Member, record.Key,
		record.Status, record.Body, record.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("冪等性レコードの保存に失敗しました: %w", err)
	}

	return nil
}

// DeleteExpired は指定時刻より前に失効したレコードを削除し、削除件数を返す。
func (r *PostgresIdempotencyRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_records WHERE expires_at <= $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("失効レコードの削除に失敗しました: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	return deleted, nil
}
