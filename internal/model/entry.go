package model

import "time"

// EntrySource はエントリの作成元を表す。
type EntrySource string

const (
	// EntrySourceManual はダッシュボード上の手動操作で作成されたエントリ。
	EntrySourceManual EntrySource = "manual"
	// EntrySourceExternal は外部連携から取り込まれたエントリ。
	EntrySourceExternal EntrySource = "external"
)

// TimeEntry は1件の時間エントリを表す。
// StopAtがnilのエントリは計測中（実行中タイマー）を意味する。
// 不変条件: 同一メンバーについて実行中エントリは常に高々1件。
// 不変条件: StartAtとStopAtが両方設定される場合、StopAt > StartAt。
type TimeEntry struct {
	ID          string     `json:"id"`
	Member      string     `json:"member"` // 正準メンバー名
	Description *string    `json:"description"`
	ProjectKey  *string    `json:"project"` // nilは「No project」
	StartAt     time.Time  `json:"start_at"`
	StopAt      *time.Time `json:"stop_at"`
	// DurationSeconds は停止後に確定する実測秒数。
	// 実行中はnilであり、now - StartAt から導出する。
	DurationSeconds *int64      `json:"duration_seconds"`
	IsRunning       bool        `json:"is_running"`
	Source          EntrySource `json:"source"`
	// SourceDate はエントリのStartAtとクライアントTZオフセットから
	// 導出したメンバーローカルのカレンダー日付キー（YYYY-MM-DD）。
	SourceDate string    `json:"source_date"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ElapsedSeconds は指定時刻時点での経過秒数を返す。
// 停止済みの場合は確定したDurationSecondsを返す。
func (e *TimeEntry) ElapsedSeconds(now time.Time) int64 {
	if e.DurationSeconds != nil {
		return *e.DurationSeconds
	}
	return int64(now.Sub(e.StartAt).Seconds())
}

// RunningEntry はメンバーごとに高々1件の実行中エントリの射影。
// 射影時点の経過秒数を含む。
type RunningEntry struct {
	ID             string    `json:"id"`
	Member         string    `json:"member"`
	Description    *string   `json:"description"`
	ProjectKey     *string   `json:"project"`
	StartAt        time.Time `json:"start_at"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
}

// IdempotencyRecord は冪等性キャッシュの1レコードを表す。
// (Scope, Member, Key) の複合キーで一意であり、期限切れまで
// 処理済みレスポンスの再生に使用される。上書きは常に後勝ち。
type IdempotencyRecord struct {
	ID        string
	Scope     string
	Member    string
	Key       string
	Status    int
	Body      []byte
	ExpiresAt time.Time
	CreatedAt time.Time
}
