package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/trackman/internal/model"
	"github.com/hitoshi/trackman/internal/timer"
)

// TimerServiceInterface はタイマーハンドラーが必要とするサービスインターフェース。
type TimerServiceInterface interface {
	// Start はタイマーを開始する。既存の実行中エントリがあればそれを返す。
	Start(ctx context.Context, member string, description, projectKey *string, elapsedSecondsBackfill int64) (*timer.StartResult, error)
	// Stop は実行中タイマーを停止する。実行中エントリがない場合は競合エラー。
	Stop(ctx context.Context, member string, tzOffsetMinutes int) (*timer.StopResult, error)
	// UpdateMetadata は実行中エントリの説明とプロジェクトのみ差し替える。
	UpdateMetadata(ctx context.Context, member string, description, projectKey *string) (*model.TimeEntry, error)
	// Backdate はクライアント報告の経過秒数で実行中エントリを補正する。
	Backdate(ctx context.Context, member string, elapsedSeconds int64, description, projectKey *string, tzOffsetMinutes int) (*model.TimeEntry, error)
	// GetRunning は実行中エントリの射影を返す。実行中でない場合はnil。
	GetRunning(ctx context.Context, member string) (*model.RunningEntry, error)
}

// TimerHandler は実行中タイマー操作のHTTPハンドラー。
type TimerHandler struct {
	service TimerServiceInterface
	guard   *idempotencyGuard
	metrics MetricsRecorder // nilの場合は記録しない
}

// NewTimerHandler はTimerHandlerを生成する。
func NewTimerHandler(service TimerServiceInterface, guard *idempotencyGuard, metrics MetricsRecorder) *TimerHandler {
	return &TimerHandler{
		service: service,
		guard:   guard,
		metrics: metrics,
	}
}

// startRequest はタイマー開始リクエストのボディ。
type startRequest struct {
	Description    *string `json:"description"`
	Project        *string `json:"project"`
	ElapsedSeconds int64   `json:"elapsed_seconds"`
}

// startResponse はタイマー開始レスポンス。
// startedがfalseの場合、entryは既存の実行中エントリ。
type startResponse struct {
	Entry   *model.TimeEntry `json:"entry"`
	Started bool             `json:"started"`
}

// stopRequest はタイマー停止リクエストのボディ。
type stopRequest struct {
	TZOffsetMinutes int `json:"tz_offset_minutes"`
}

// stopResponse はタイマー停止レスポンス。
type stopResponse struct {
	Entry        *model.TimeEntry `json:"entry"`
	StoppedCount int              `json:"stopped_count"`
}

// metadataRequest は実行中エントリのメタデータ更新リクエストのボディ。
type metadataRequest struct {
	Description *string `json:"description"`
	Project     *string `json:"project"`
}

// backdateRequest はバックデートリクエストのボディ。
type backdateRequest struct {
	ElapsedSeconds  int64   `json:"elapsed_seconds"`
	Description     *string `json:"description"`
	Project         *string `json:"project"`
	TZOffsetMinutes int     `json:"tz_offset_minutes"`
}

// Start はタイマーを開始する。
// POST /api/members/{member}/timer/start
func (h *TimerHandler) Start(w http.ResponseWriter, r *http.Request) {
	member := chi.URLParam(r, "member")

	var req startRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
			return
		}
	}

	result, err := h.service.Start(r.Context(), member, req.Description, req.Project, req.ElapsedSeconds)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 冪等なstart（既存実行中エントリの返却）は200でカウントもしない
	status := http.StatusOK
	if result.Started {
		status = http.StatusCreated
		if h.metrics != nil {
			h.metrics.RecordTimerStart(member)
		}
	}
	writeJSON(w, status, startResponse{Entry: result.Entry, Started: result.Started})
}

// Stop は実行中タイマーを停止する。実行中でない場合は409を返す。
// POST /api/members/{member}/timer/stop
func (h *TimerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	member := chi.URLParam(r, "member")

	var req stopRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
			return
		}
	}

	result, err := h.service.Stop(r.Context(), member, req.TZOffsetMinutes)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordTimerStop(member)
	}
	writeJSON(w, http.StatusOK, stopResponse{Entry: result.Entry, StoppedCount: result.StoppedCount})
}

// UpdateMetadata は実行中エントリの説明とプロジェクトを差し替える。
// Idempotency-Keyヘッダーによる再送保護つき。実行中でない場合はnullを返す。
// PATCH /api/members/{member}/timer
func (h *TimerHandler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	member := chi.URLParam(r, "member")

	var req metadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	h.guard.run(w, r, "timer.update", member, func() (int, any) {
		entry, err := h.service.UpdateMetadata(r.Context(), member, req.Description, req.Project)
		if err != nil {
			status, payload := errorStatusAndPayload(err)
			return status, payload
		}
		return http.StatusOK, entry
	})
}

// Backdate は実行中エントリの開始時刻を経過秒数から補正する。
// POST /api/members/{member}/timer/backdate
func (h *TimerHandler) Backdate(w http.ResponseWriter, r *http.Request) {
	member := chi.URLParam(r, "member")

	var req backdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	entry, err := h.service.Backdate(r.Context(), member, req.ElapsedSeconds, req.Description, req.Project, req.TZOffsetMinutes)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// GetRunning は実行中エントリの射影を返す。実行中でない場合はnullを返す。
// GET /api/members/{member}/timer
func (h *TimerHandler) GetRunning(w http.ResponseWriter, r *http.Request) {
	member := chi.URLParam(r, "member")

	running, err := h.service.GetRunning(r.Context(), member)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, running)
}
