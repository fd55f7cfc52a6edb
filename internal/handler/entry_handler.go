package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/trackman/internal/entry"
	"github.com/hitoshi/trackman/internal/model"
)

// EntryServiceInterface はエントリハンドラーが必要とするサービスインターフェース。
type EntryServiceInterface interface {
	// CreateManual は過去の時間範囲を確定済みエントリとして作成する。
	CreateManual(ctx context.Context, member string, description, projectKey *string, startAt time.Time, durationSeconds int64, tzOffsetMinutes int) (*model.TimeEntry, error)
	// Update は確定済みエントリの時間範囲とメタデータを書き換える。
	Update(ctx context.Context, member, entryID string, description, projectKey *string, startAt, stopAt time.Time, tzOffsetMinutes int) (*model.TimeEntry, error)
	// Delete はエントリを削除し、実行中だったかを報告する。
	Delete(ctx context.Context, member, entryID string) (*entry.DeleteResult, error)
	// GetDay は1メンバー・1日分のビューを返す。
	GetDay(ctx context.Context, member, dateKey string, tzOffsetMinutes int) (*entry.DayView, error)
	// GetTeamDay は全メンバー・1日分のビューをランキング付きで返す。
	GetTeamDay(ctx context.Context, dateKey string, tzOffsetMinutes int) (*entry.TeamDayView, error)
}

// EntryHandler は確定済みエントリ操作と日次ビューのHTTPハンドラー。
type EntryHandler struct {
	service EntryServiceInterface
	guard   *idempotencyGuard
}

// NewEntryHandler はEntryHandlerを生成する。
func NewEntryHandler(service EntryServiceInterface, guard *idempotencyGuard) *EntryHandler {
	return &EntryHandler{
		service: service,
		guard:   guard,
	}
}

// createEntryRequest は手動エントリ作成リクエストのボディ。
// duration_secondsとduration_minutesのどちらか一方が必須。
type createEntryRequest struct {
	Description     *string   `json:"description"`
	Project         *string   `json:"project"`
	StartAt         time.Time `json:"start_at"`
	DurationSeconds *int64    `json:"duration_seconds"`
	DurationMinutes *int64    `json:"duration_minutes"`
	TZOffsetMinutes int       `json:"tz_offset_minutes"`
}

// updateEntryRequest はエントリ更新リクエストのボディ。
type updateEntryRequest struct {
	Description     *string   `json:"description"`
	Project         *string   `json:"project"`
	StartAt         time.Time `json:"start_at"`
	StopAt          time.Time `json:"stop_at"`
	TZOffsetMinutes int       `json:"tz_offset_minutes"`
}

// CreateManual は過去の時間範囲を手動入力で作成する。
// POST /api/members/{member}/entries
func (h *EntryHandler) CreateManual(w http.ResponseWriter, r *http.Request) {
	member := chi.URLParam(r, "member")

	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	var durationSeconds int64
	switch {
	case req.DurationSeconds != nil:
		durationSeconds = *req.DurationSeconds
	case req.DurationMinutes != nil:
		durationSeconds = *req.DurationMinutes * 60
	default:
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("duration_secondsまたはduration_minutesが必要です"))
		return
	}

	created, err := h.service.CreateManual(r.Context(), member, req.Description, req.Project, req.StartAt, durationSeconds, req.TZOffsetMinutes)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// Update はエントリの時間範囲とメタデータを書き換える。
// Idempotency-Keyヘッダーによる再送保護つき。ドラッグ/リサイズの
// コミットはこのエンドポイントを通る。
// PUT /api/members/{member}/entries/{id}
func (h *EntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	member := chi.URLParam(r, "member")
	entryID := chi.URLParam(r, "id")

	var req updateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	h.guard.run(w, r, "entry.update", member, func() (int, any) {
		updated, err := h.service.Update(r.Context(), member, entryID, req.Description, req.Project, req.StartAt, req.StopAt, req.TZOffsetMinutes)
		if err != nil {
			status, payload := errorStatusAndPayload(err)
			return status, payload
		}
		return http.StatusOK, updated
	})
}

// Delete はエントリを削除する。
// DELETE /api/members/{member}/entries/{id}
func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	member := chi.URLParam(r, "member")
	entryID := chi.URLParam(r, "id")

	result, err := h.service.Delete(r.Context(), member, entryID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetDay は1メンバー・1日分のビューを返す。
// GET /api/members/{member}/days/{date}?tz_offset_minutes=
func (h *EntryHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	member := chi.URLParam(r, "member")
	dateKey := chi.URLParam(r, "date")

	tzOffset, ok := parseTZOffset(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetDay(r.Context(), member, dateKey, tzOffset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// GetTeamDay は全メンバー・1日分のビューをランキング付きで返す。
// GET /api/team/days/{date}?tz_offset_minutes=
func (h *EntryHandler) GetTeamDay(w http.ResponseWriter, r *http.Request) {
	dateKey := chi.URLParam(r, "date")

	tzOffset, ok := parseTZOffset(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetTeamDay(r.Context(), dateKey, tzOffset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// parseTZOffset はクエリパラメータからTZオフセット（分）を取り出す。
// 未指定は0（UTC）、数値として解析できない場合は400を書き込みfalseを返す。
func parseTZOffset(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("tz_offset_minutes")
	if raw == "" {
		return 0, true
	}

	offset, err := strconv.Atoi(raw)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("tz_offset_minutesは整数で指定してください"))
		return 0, false
	}
	return offset, true
}
