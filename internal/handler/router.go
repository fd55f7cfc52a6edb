package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/trackman/internal/idempotency"
	"github.com/hitoshi/trackman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// サービス
	TimerService TimerServiceInterface
	EntryService EntryServiceInterface

	// 再送保護
	IdempotencyCache *idempotency.Cache

	// メトリクス（nilの場合は記録しない）
	Metrics MetricsRecorder

	// 運用エンドポイント
	MetricsHandler     http.Handler
	HealthcheckHandler http.HandlerFunc
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware → CORSMiddleware → RateLimitMiddleware
//
// 変更系エンドポイントには変更系レート制限を追加で適用する。
// 運用ルート（/healthz, /metrics）はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	guard := &idempotencyGuard{cache: deps.IdempotencyCache, metrics: deps.Metrics}
	timerHandler := NewTimerHandler(deps.TimerService, guard, deps.Metrics)
	entryHandler := NewEntryHandler(deps.EntryService, guard)

	// --- 運用ルート ---

	if deps.HealthcheckHandler != nil {
		r.Get("/healthz", deps.HealthcheckHandler)
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- APIルート ---
	// ミドルウェアスタック: RateLimit(General)、変更系はさらにRateLimit(Mutation)
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		mutation := deps.RateLimiter.MutationMiddleware()

		// タイマー操作
		r.Route("/api/members/{member}/timer", func(r chi.Router) {
			r.Get("/", timerHandler.GetRunning)
			r.With(mutation).Patch("/", timerHandler.UpdateMetadata)
			r.With(mutation).Post("/start", timerHandler.Start)
			r.With(mutation).Post("/stop", timerHandler.Stop)
			r.With(mutation).Post("/backdate", timerHandler.Backdate)
		})

		// エントリ操作
		r.Route("/api/members/{member}/entries", func(r chi.Router) {
			r.With(mutation).Post("/", entryHandler.CreateManual)

			r.Route("/{id}", func(r chi.Router) {
				r.With(mutation).Put("/", entryHandler.Update)
				r.With(mutation).Delete("/", entryHandler.Delete)
			})
		})

		// 日次ビュー
		r.Get("/api/members/{member}/days/{date}", entryHandler.GetDay)
		r.Get("/api/team/days/{date}", entryHandler.GetTeamDay)
	})

	return r
}
