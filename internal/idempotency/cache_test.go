package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/trackman/internal/model"
)

// mockIdempotencyRepo はテスト用のIdempotencyRepositoryモック。
// 実際のTTL判定を模倣するため、レコードをメモリに保持する。
type mockIdempotencyRepo struct {
	records  map[string]*model.IdempotencyRecord
	upsertFn func(ctx context.Context, record *model.IdempotencyRecord) error
}

func newMockIdempotencyRepo() *mockIdempotencyRepo {
	return &mockIdempotencyRepo{records: make(map[string]*model.IdempotencyRecord)}
}

func recordKey(scope, member, key string) string {
	return scope + "|" + member + "|" + key
}

func (m *mockIdempotencyRepo) Find(_ context.Context, scope, member, key string, now time.Time) (*model.IdempotencyRecord, error) {
	record, ok := m.records[recordKey(scope, member, key)]
	if !ok || !record.ExpiresAt.After(now) {
		return nil, nil
	}
	return record, nil
}

func (m *mockIdempotencyRepo) Upsert(ctx context.Context, record *model.IdempotencyRecord) error {
	if m.upsertFn != nil {
		if err := m.upsertFn(ctx, record); err != nil {
			return err
		}
	}
	m.records[recordKey(record.Scope, record.Member, record.Key)] = record
	return nil
}

func (m *mockIdempotencyRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	var deleted int64
	for k, record := range m.records {
		if !record.ExpiresAt.After(before) {
			delete(m.records, k)
			deleted++
		}
	}
	return deleted, nil
}

// TestCache_WriteThenRead は記録したレスポンスがTTL内に再生されることをテストする。
func TestCache_WriteThenRead(t *testing.T) {
	repo := newMockIdempotencyRepo()
	cache := New(repo, 180*time.Second, 90*time.Second)

	ctx := context.Background()
	body := []byte(`{"id":"entry-1"}`)
	if err := cache.Write(ctx, "updateEntry", "Alice", "key-1", 200, body); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	cached, err := cache.Read(ctx, "updateEntry", "Alice", "key-1")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cached == nil {
		t.Fatal("Read() = nil, want cached response")
	}
	if cached.Status != 200 {
		t.Errorf("Status = %d, want 200", cached.Status)
	}
	if string(cached.Body) != string(body) {
		t.Errorf("Body = %s, want %s", cached.Body, body)
	}
}

// TestCache_EmptyKeyDisablesCaching はキーが空の場合に冪等性チェックが無効になることをテストする。
func TestCache_EmptyKeyDisablesCaching(t *testing.T) {
	repo := newMockIdempotencyRepo()
	cache := New(repo, 180*time.Second, 90*time.Second)

	ctx := context.Background()
	if err := cache.Write(ctx, "updateEntry", "Alice", "", 200, []byte(`{}`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if len(repo.records) != 0 {
		t.Errorf("records = %d, want 0 (empty key must not be stored)", len(repo.records))
	}

	cached, err := cache.Read(ctx, "updateEntry", "Alice", "")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cached != nil {
		t.Errorf("Read() = %+v, want nil", cached)
	}
}

// TestCache_SuccessAndFailureTTL は成功が長いTTL、失敗が短いTTLで
// キャッシュされることをテストする。
func TestCache_SuccessAndFailureTTL(t *testing.T) {
	repo := newMockIdempotencyRepo()
	cache := New(repo, 180*time.Second, 90*time.Second)

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	current := base
	cache.now = func() time.Time { return current }

	ctx := context.Background()
	if err := cache.Write(ctx, "updateEntry", "Alice", "ok", 200, []byte(`{}`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := cache.Write(ctx, "updateEntry", "Alice", "bad", 502, []byte(`{}`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// 90秒経過: 失敗キャッシュのみ失効し、修正済みの再送が通るようになる。
	current = base.Add(90*time.Second + time.Second)

	cached, err := cache.Read(ctx, "updateEntry", "Alice", "bad")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cached != nil {
		t.Errorf("failure cache still alive after failure TTL: %+v", cached)
	}

	cached, err = cache.Read(ctx, "updateEntry", "Alice", "ok")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cached == nil {
		t.Error("success cache expired before success TTL")
	}

	// 180秒経過: 成功キャッシュも失効する。
	current = base.Add(180*time.Second + time.Second)
	cached, err = cache.Read(ctx, "updateEntry", "Alice", "ok")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cached != nil {
		t.Errorf("success cache still alive after success TTL: %+v", cached)
	}
}

// TestCache_ScopeAndMemberIsolation はスコープとメンバーが異なる同一キーが
// 互いに干渉しないことをテストする。
func TestCache_ScopeAndMemberIsolation(t *testing.T) {
	repo := newMockIdempotencyRepo()
	cache := New(repo, 180*time.Second, 90*time.Second)

	ctx := context.Background()
	if err := cache.Write(ctx, "updateEntry", "Alice", "key-1", 200, []byte(`"alice"`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	cached, err := cache.Read(ctx, "updateEntry", "Bob", "key-1")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cached != nil {
		t.Error("cache leaked across members")
	}

	cached, err = cache.Read(ctx, "updateMetadata", "Alice", "key-1")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cached != nil {
		t.Error("cache leaked across scopes")
	}
}

// TestCache_LastWriteWins は同一キーへの再書き込みが前の値を上書きすることをテストする。
func TestCache_LastWriteWins(t *testing.T) {
	repo := newMockIdempotencyRepo()
	cache := New(repo, 180*time.Second, 90*time.Second)

	ctx := context.Background()
	if err := cache.Write(ctx, "updateEntry", "Alice", "key-1", 502, []byte(`"first"`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := cache.Write(ctx, "updateEntry", "Alice", "key-1", 200, []byte(`"second"`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	cached, err := cache.Read(ctx, "updateEntry", "Alice", "key-1")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cached == nil {
		t.Fatal("Read() = nil, want cached response")
	}
	if cached.Status != 200 || string(cached.Body) != `"second"` {
		t.Errorf("cached = %d %s, want 200 \"second\"", cached.Status, cached.Body)
	}
}

// TestCache_PurgeExpired は失効済みレコードのみが削除されることをテストする。
func TestCache_PurgeExpired(t *testing.T) {
	repo := newMockIdempotencyRepo()
	cache := New(repo, 180*time.Second, 90*time.Second)

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	current := base
	cache.now = func() time.Time { return current }

	ctx := context.Background()
	if err := cache.Write(ctx, "updateEntry", "Alice", "old", 502, []byte(`{}`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := cache.Write(ctx, "updateEntry", "Alice", "new", 200, []byte(`{}`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	current = base.Add(2 * time.Minute)
	deleted, err := cache.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if len(repo.records) != 1 {
		t.Errorf("remaining records = %d, want 1", len(repo.records))
	}
}
