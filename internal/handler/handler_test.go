package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/trackman/internal/idempotency"
	"github.com/hitoshi/trackman/internal/model"
)

// --- 共有テストヘルパー ---

// mockIdemRepo はテスト用のIdempotencyRepositoryモック。レコードをメモリに保持する。
type mockIdemRepo struct {
	records map[string]*model.IdempotencyRecord
}

func newMockIdemRepo() *mockIdemRepo {
	return &mockIdemRepo{records: make(map[string]*model.IdempotencyRecord)}
}

func (m *mockIdemRepo) compositeKey(scope, member, key string) string {
	return scope + "|" + member + "|" + key
}

func (m *mockIdemRepo) Find(_ context.Context, scope, member, key string, now time.Time) (*model.IdempotencyRecord, error) {
	record, ok := m.records[m.compositeKey(scope, member, key)]
	if !ok || !record.ExpiresAt.After(now) {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (m *mockIdemRepo) Upsert(_ context.Context, record *model.IdempotencyRecord) error {
	copied := *record
	m.records[m.compositeKey(record.Scope, record.Member, record.Key)] = &copied
	return nil
}

func (m *mockIdemRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	var count int64
	for key, record := range m.records {
		if record.ExpiresAt.Before(before) {
			delete(m.records, key)
			count++
		}
	}
	return count, nil
}

// newTestGuard はインメモリの再送保護ガードを生成する。
func newTestGuard() *idempotencyGuard {
	cache := idempotency.New(newMockIdemRepo(), 180*time.Second, 90*time.Second)
	return &idempotencyGuard{cache: cache}
}

// mockMetricsRecorder はMetricsRecorderのテスト用モック。
type mockMetricsRecorder struct {
	timerStarts []string
	timerStops  []string
	replays     []string
}

func (m *mockMetricsRecorder) RecordHTTPStatus(statusCode int) {}

func (m *mockMetricsRecorder) RecordRequestLatency(duration time.Duration) {}

func (m *mockMetricsRecorder) RecordIdempotencyReplay(scope string) {
	m.replays = append(m.replays, scope)
}

func (m *mockMetricsRecorder) RecordTimerStart(member string) {
	m.timerStarts = append(m.timerStarts, member)
}

func (m *mockMetricsRecorder) RecordTimerStop(member string) {
	m.timerStops = append(m.timerStops, member)
}

// withRouteParams はリクエストにchiルートパラメータを注入する。
func withRouteParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func strPtr(s string) *string { return &s }

// TestMapAPIErrorToHTTPStatus はエラーコードとHTTPステータスの対応をテストする。
func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewMemberNotFoundError("x"), http.StatusNotFound},
		{model.NewEntryNotFoundError("x"), http.StatusNotFound},
		{model.NewProjectNotFoundError("x"), http.StatusNotFound},
		{model.NewNoRunningTimerError("x"), http.StatusConflict},
		{model.NewEntryForbiddenError("x"), http.StatusForbidden},
		{model.NewInvalidTimeRangeError(), http.StatusBadRequest},
		{model.NewInvalidDurationError(-1), http.StatusBadRequest},
		{model.NewInvalidRequestError("x"), http.StatusBadRequest},
		{model.NewStoreFailureError(context.DeadlineExceeded), http.StatusBadGateway},
	}

	for _, tt := range tests {
		if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
			t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.err.Code, got, tt.want)
		}
	}
}
