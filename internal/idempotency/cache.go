// Package idempotency は変更系操作の再送保護を提供する。
// (操作スコープ, メンバー, クライアント指定キー) ごとに処理済みレスポンスを
// TTL付きでキャッシュし、同一キーの再送にはレスポンスをそのまま再生する。
package idempotency

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/trackman/internal/model"
	"github.com/hitoshi/trackman/internal/repository"
)

// CachedResponse はキャッシュされたHTTPレスポンス。
type CachedResponse struct {
	Status int
	Body   []byte
}

// Cache は冪等性キャッシュ。変更系操作の前にReadで照会し、
// 処理完了後（成功・失敗を問わず）にWriteで記録する。
// 同一キーで同時に到達したリクエスト同士の競合は狭い窓として許容する
// （副作用は高々1回余分に起こり得るが、ゼロは保証しない）。
type Cache struct {
	repo       repository.IdempotencyRepository
	successTTL time.Duration
	failureTTL time.Duration

	// now はテストで時計を差し替えるためのフック。
	now func() time.Time
}

// New はCacheを生成する。
// 成功レスポンスは長め、失敗レスポンスは短めのTTLでキャッシュする。
// 失敗を短くすることで、本物の失敗は早期に再試行できる一方、
// 高速な重複送信からは保護される。
func New(repo repository.IdempotencyRepository, successTTL, failureTTL time.Duration) *Cache {
	return &Cache{
		repo:       repo,
		successTTL: successTTL,
		failureTTL: failureTTL,
		now:        time.Now,
	}
}

// Read は未失効のキャッシュ済みレスポンスを返す。存在しない場合はnilを返す。
// キーが空の場合は常にnilを返す（呼び出し側がat-least-onceを受け入れたことを意味する）。
func (c *Cache) Read(ctx context.Context, scope, member, key string) (*CachedResponse, error) {
	if key == "" {
		return nil, nil
	}

	record, err := c.repo.Find(ctx, scope, member, key, c.now())
	if err != nil {
		return nil, model.NewStoreFailureError(err)
	}
	if record == nil {
		return nil, nil
	}

	return &CachedResponse{Status: record.Status, Body: record.Body}, nil
}

// Write は処理結果をキャッシュに記録する。キーが空の場合は何もしない。
// ステータスコードに応じてTTLを選択する（4xx/5xxは短いTTL）。
// 同一キーの既存レコードは上書きされる（後勝ち）。
func (c *Cache) Write(ctx context.Context, scope, member, key string, status int, body []byte) error {
	if key == "" {
		return nil
	}

	ttl := c.successTTL
	if status >= http.StatusBadRequest {
		ttl = c.failureTTL
	}

	record := &model.IdempotencyRecord{
		ID:        uuid.NewString(),
		Scope:     scope,
		Member:    member,
		Key:       key,
		Status:    status,
		Body:      body,
		ExpiresAt: c.now().Add(ttl),
	}

	if err := c.repo.Upsert(ctx, record); err != nil {
		return model.NewStoreFailureError(err)
	}

	return nil
}

// PurgeExpired は失効済みレコードを削除し、削除件数を返す。
// クリーンアップワーカーから定期実行される。
func (c *Cache) PurgeExpired(ctx context.Context) (int64, error) {
	return c.repo.DeleteExpired(ctx, c.now())
}
