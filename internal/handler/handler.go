// Package handler はHTTP APIのハンドラー層を提供する。
// サービス層の型付きエラーを統一エラーフォーマットとHTTPステータスに
// 変換し、変更系操作にはIdempotency-Keyヘッダーによる再送保護を適用する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/trackman/internal/idempotency"
	"github.com/hitoshi/trackman/internal/model"
)

// IdempotencyKeyHeader はクライアントが再送保護キーを渡すヘッダー名。
const IdempotencyKeyHeader = "Idempotency-Key"

// MetricsRecorder はハンドラー層が記録するメトリクスを抽象化するインターフェース。
type MetricsRecorder interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordIdempotencyReplay(scope string)
	RecordTimerStart(member string)
	RecordTimerStop(member string)
}

// apiErrorResponse はAPIエラーレスポンスの統一フォーマット。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	status, payload := errorStatusAndPayload(err)
	writeJSON(w, status, payload)
}

// errorStatusAndPayload はエラーをHTTPステータスとレスポンスボディに変換する。
// APIError以外のエラーは内部サーバーエラーとして扱う。
func errorStatusAndPayload(err error) (int, apiErrorResponse) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return mapAPIErrorToHTTPStatus(apiErr), apiErrorResponse{
			Code:     apiErr.Code,
			Message:  apiErr.Message,
			Category: apiErr.Category,
			Action:   apiErr.Action,
		}
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	return http.StatusInternalServerError, apiErrorResponse{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: model.CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
// 競合（409）とバリデーション（400）を区別して返すことで、呼び出し側が
// 再送と状態再取得のどちらを選ぶべきかを判断できる。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeMemberNotFound, model.ErrCodeEntryNotFound, model.ErrCodeProjectNotFound:
		return http.StatusNotFound
	case model.ErrCodeNoRunningTimer:
		return http.StatusConflict
	case model.ErrCodeEntryForbidden:
		return http.StatusForbidden
	case model.ErrCodeInvalidTimeRange, model.ErrCodeInvalidDuration, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeStoreFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// idempotencyGuard は変更系ハンドラーの再送保護ラッパー。
// Idempotency-Keyヘッダーがあればキャッシュを照会し、ヒット時は記録済み
// レスポンスをそのまま再生する。ミス時は操作を1回だけ実行し、結果を
// （成功・失敗を問わず）キャッシュに記録してから返す。
// ヘッダーなしのリクエストは素通しになる（at-least-once）。
type idempotencyGuard struct {
	cache   *idempotency.Cache
	metrics MetricsRecorder // nilの場合は記録しない
}

// run は操作をscope/member単位の再送保護つきで実行する。
// opは(HTTPステータス, レスポンスボディ)を返す。
func (g *idempotencyGuard) run(w http.ResponseWriter, r *http.Request, scope, member string, op func() (int, any)) {
	key := r.Header.Get(IdempotencyKeyHeader)

	cached, err := g.cache.Read(r.Context(), scope, member, key)
	if err != nil {
		// キャッシュ照会の失敗は操作自体を妨げない。再送保護なしで続行する。
		slog.Warn("idempotency cache read failed",
			slog.String("scope", scope),
			slog.String("member", member),
			slog.String("error", err.Error()),
		)
	}
	if cached != nil {
		if g.metrics != nil {
			g.metrics.RecordIdempotencyReplay(scope)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotency-Replayed", "true")
		w.WriteHeader(cached.Status)
		w.Write(cached.Body)
		return
	}

	status, payload := op()

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("response marshal failed", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
			Code:     "INTERNAL_ERROR",
			Message:  "内部エラーが発生しました。",
			Category: model.CategorySystem,
			Action:   "しばらく待ってから再度お試しください。",
		})
		return
	}

	if err := g.cache.Write(r.Context(), scope, member, key, status, body); err != nil {
		slog.Warn("idempotency cache write failed",
			slog.String("scope", scope),
			slog.String("member", member),
			slog.String("error", err.Error()),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
