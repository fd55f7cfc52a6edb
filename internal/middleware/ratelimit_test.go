package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// newMemberRequest はメンバーパスセグメント付きのテストリクエストを生成する。
func newMemberRequest(member string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("member", member)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// --- GeneralMiddleware のテスト ---

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     2, // 2 req/sec
		GeneralBurst:    5, // バースト5
		MutationRate:    1, // 未使用
		MutationBurst:   10,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()

	handlerCallCount := 0
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCallCount++
		w.WriteHeader(http.StatusOK)
	}))

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newMemberRequest("Alice"))

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	if handlerCallCount != 5 {
		t.Errorf("handler call count = %d, want 5", handlerCallCount)
	}
}

func TestRateLimitMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1, // 1 req/sec
		GeneralBurst:    2, // バースト2
		MutationRate:    1,
		MutationBurst:   10,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// バースト分（2回）は通る
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newMemberRequest("Alice"))

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	// 3回目はレート制限に引っかかる
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newMemberRequest("Alice"))

	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}
	if w.Result().Header.Get("Retry-After") == "" {
		t.Error("Retry-After header is empty")
	}
}

func TestRateLimitMiddleware_IsolatesPerMember(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		MutationRate:    1,
		MutationBurst:   10,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Aliceのバーストを使い切る
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newMemberRequest("Alice"))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newMemberRequest("Alice"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("Alice second request: status = %d, want 429", w.Result().StatusCode)
	}

	// Bobは独立したリミッターなので通る
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newMemberRequest("Bob"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("Bob request: status = %d, want 200", w.Result().StatusCode)
	}
}

// --- MutationMiddleware のテスト ---

func TestMutationMiddleware_IndependentFromGeneral(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		MutationRate:    1,
		MutationBurst:   1,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	general := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	mutation := rl.MutationMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// API全般のバーストを使い切っても変更系は通る
	w := httptest.NewRecorder()
	general.ServeHTTP(w, newMemberRequest("Alice"))

	w = httptest.NewRecorder()
	mutation.ServeHTTP(w, newMemberRequest("Alice"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("mutation request: status = %d, want 200", w.Result().StatusCode)
	}

	if rl.GeneralLimiterCount() != 1 || rl.MutationLimiterCount() != 1 {
		t.Errorf("limiter counts = %d/%d, want 1/1",
			rl.GeneralLimiterCount(), rl.MutationLimiterCount())
	}
}

// --- limitKey のテスト ---

func TestLimitKey_FallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/team/days/2024-01-10", nil)
	req.RemoteAddr = "192.0.2.1:51234"

	key := limitKey(req)
	if key != "addr:192.0.2.1" {
		t.Errorf("limitKey = %q, want %q", key, "addr:192.0.2.1")
	}
}

func TestLimitKey_UsesMemberParam(t *testing.T) {
	key := limitKey(newMemberRequest("Alice"))
	if key != "member:Alice" {
		t.Errorf("limitKey = %q, want %q", key, "member:Alice")
	}
}
