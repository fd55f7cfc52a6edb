package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, not_found, conflict, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMemberNotFound   = "MEMBER_NOT_FOUND"
	ErrCodeEntryNotFound    = "ENTRY_NOT_FOUND"
	ErrCodeProjectNotFound  = "PROJECT_NOT_FOUND"
	ErrCodeNoRunningTimer   = "NO_RUNNING_TIMER"
	ErrCodeEntryForbidden   = "ENTRY_FORBIDDEN"
	ErrCodeInvalidTimeRange = "INVALID_TIME_RANGE"
	ErrCodeInvalidDuration  = "INVALID_DURATION"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeStoreFailure     = "STORE_FAILURE"
)

// エラーカテゴリ
const (
	CategoryValidation = "validation"
	CategoryNotFound   = "not_found"
	CategoryConflict   = "conflict"
	CategoryUpstream   = "upstream"
	CategorySystem     = "system"
)

// NewMemberNotFoundError はメンバー未解決エラーを生成する。
// エイリアスの畳み込み後にも正準名が見つからない場合に返す。
func NewMemberNotFoundError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeMemberNotFound,
		Message:  fmt.Sprintf("指定されたメンバーが見つかりません: %s", name),
		Category: CategoryNotFound,
		Action:   "メンバー名を確認してください。",
	}
}

// NewEntryNotFoundError はエントリ未検出エラーを生成する。
func NewEntryNotFoundError(entryID string) *APIError {
	return &APIError{
		Code:     ErrCodeEntryNotFound,
		Message:  fmt.Sprintf("指定されたエントリが見つかりません: %s", entryID),
		Category: CategoryNotFound,
		Action:   "エントリIDを確認してください。",
	}
}

// NewProjectNotFoundError はプロジェクト未検出エラーを生成する。
func NewProjectNotFoundError(key string) *APIError {
	return &APIError{
		Code:     ErrCodeProjectNotFound,
		Message:  fmt.Sprintf("指定されたプロジェクトが見つかりません: %s", key),
		Category: CategoryNotFound,
		Action:   "プロジェクトキーを確認してください。",
	}
}

// NewNoRunningTimerError は実行中タイマー不在の競合エラーを生成する。
// バリデーションと区別して返すことで、呼び出し側が再送ではなく
// 状態の再取得を選択できるようにする。
func NewNoRunningTimerError(member string) *APIError {
	return &APIError{
		Code:     ErrCodeNoRunningTimer,
		Message:  fmt.Sprintf("実行中のタイマーがありません: %s", member),
		Category: CategoryConflict,
		Action:   "タイマーの状態を再取得してください。",
	}
}

// NewEntryForbiddenError はエントリの所有者不一致エラーを生成する。
func NewEntryForbiddenError(entryID string) *APIError {
	return &APIError{
		Code:     ErrCodeEntryForbidden,
		Message:  fmt.Sprintf("このエントリを操作する権限がありません: %s", entryID),
		Category: CategoryConflict,
		Action:   "自分のエントリのみ編集できます。",
	}
}

// NewInvalidTimeRangeError は開始・終了時刻の逆転エラーを生成する。
func NewInvalidTimeRangeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTimeRange,
		Message:  "終了時刻は開始時刻より後である必要があります。",
		Category: CategoryValidation,
		Action:   "開始時刻と終了時刻を確認してください。",
	}
}

// NewInvalidDurationError は非正の所要時間エラーを生成する。
func NewInvalidDurationError(seconds int64) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDuration,
		Message:  fmt.Sprintf("無効な所要時間です: %d秒", seconds),
		Category: CategoryValidation,
		Action:   "所要時間は1秒以上を指定してください。",
	}
}

// NewInvalidRequestError はリクエスト形式不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("無効なリクエストです: %s", reason),
		Category: CategoryValidation,
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewStoreFailureError はストア到達不能などの一時的エラーを生成する。
// 冪等性キャッシュには短いTTLで記録され、即時の重複再送から保護しつつ
// 修正後の再送は早期に成功できる。
func NewStoreFailureError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeStoreFailure,
		Message:  fmt.Sprintf("ストアへのアクセスに失敗しました: %v", err),
		Category: CategoryUpstream,
		Action:   "しばらく待ってから再度お試しください。",
	}
}
