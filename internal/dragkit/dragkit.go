// Package dragkit はタイムラインブロックのドラッグ/リサイズ操作を
// 確定済みの開始・終了時刻の書き換えに変換する状態機械を提供する。
// ポインタ座標の差分を分に換算し、固定グリッドにスナップし、
// 日境界と最小所要時間でクランプした上で、コミットまたはクリックの
// どちらかの結果を返す。状態はジェスチャ1回分のみで永続化されない。
package dragkit

import (
	"math"
	"time"

	"github.com/hitoshi/trackman/internal/model"
	"github.com/hitoshi/trackman/internal/timeline"
)

const (
	// SnapMinutes はドラッグ差分を丸めるグリッド幅（分）。
	SnapMinutes = 5.0

	// MinDurationMinutes はリサイズで縮められる下限（分）。グリッド1目盛。
	MinDurationMinutes = SnapMinutes

	// ClickThresholdPixels はクリックとドラッグを区別するポインタ移動量の閾値。
	// これを超えなかったジェスチャはクリックとして扱う。
	ClickThresholdPixels = 4.0

	// SuppressClickWindow は実ドラッグ確定後にブラウザ合成クリックを
	// 無視する猶予。この間のクリックはエディタを開かない。
	SuppressClickWindow = 300 * time.Millisecond
)

// Mode はジェスチャの操作種別。
type Mode int

const (
	// ModeMove はブロック全体の平行移動。所要時間は変わらない。
	ModeMove Mode = iota
	// ModeResizeStart は開始側のリサイズ。終了時刻は変わらない。
	ModeResizeStart
	// ModeResizeEnd は終了側のリサイズ。開始時刻は変わらない。
	ModeResizeEnd
)

// OutcomeKind はジェスチャ終了時の結果種別。
type OutcomeKind int

const (
	// OutcomeClick は移動閾値未満のジェスチャ。エディタを開くべき。
	OutcomeClick OutcomeKind = iota
	// OutcomeCommit は実ドラッグ。新しい開始・終了で更新リクエストを出すべき。
	OutcomeCommit
)

// Outcome はジェスチャ終了時の結果。
// Commitの場合のみStartAt/StopAtが意味を持つ。
type Outcome struct {
	Kind    OutcomeKind
	EntryID string
	StartAt time.Time
	StopAt  time.Time
}

// Gesture は進行中の1回のドラッグ/リサイズ操作。
// pointer-downで生成され、pointer-moveで更新され、pointer-upで消費される。
// 並行アクセスは想定しない（単一ポインタの逐次イベント列を処理する）。
type Gesture struct {
	entryID  string
	mode     Mode
	dayStart time.Time
	dayMin   float64 // 日の長さ（分）

	// pointer-down時点のベースライン（日頭からの分）
	origStartMin float64
	origDurMin   float64
	anchorY      float64

	// 現在のプレビュー位置（クランプ・スナップ適用済み）
	previewStartMin float64
	previewDurMin   float64

	// 閾値判定用の最大移動量
	maxAbsDeltaPixels float64
}

// Begin はpointer-downでジェスチャを開始する。
// 実行中（未停止）のエントリはドラッグ対象にならず、検証エラーを返す。
// エントリの現在位置をベースラインとして取り込む。
func Begin(entry *model.TimeEntry, mode Mode, dayStart, dayEnd time.Time, pointerY float64) (*Gesture, error) {
	if entry.IsRunning || entry.StopAt == nil {
		return nil, model.NewInvalidRequestError("実行中のエントリはドラッグできません")
	}

	startMin := entry.StartAt.Sub(dayStart).Minutes()
	durMin := entry.StopAt.Sub(entry.StartAt).Minutes()

	return &Gesture{
		entryID:         entry.ID,
		mode:            mode,
		dayStart:        dayStart,
		dayMin:          dayEnd.Sub(dayStart).Minutes(),
		origStartMin:    startMin,
		origDurMin:      durMin,
		anchorY:         pointerY,
		previewStartMin: startMin,
		previewDurMin:   durMin,
	}, nil
}

// Update はpointer-moveでプレビュー位置を再計算する。
// 差分を分に換算してグリッドにスナップし、モードに応じて開始のみ（move）、
// 開始と所要時間を逆向きに（resize-start）、所要時間のみ（resize-end）
// 調整する。常に日境界と最小所要時間でクランプする。
func (g *Gesture) Update(pointerY float64) {
	deltaPixels := pointerY - g.anchorY
	if abs := math.Abs(deltaPixels); abs > g.maxAbsDeltaPixels {
		g.maxAbsDeltaPixels = abs
	}

	deltaMin := snap(pixelsToMinutes(deltaPixels))

	switch g.mode {
	case ModeMove:
		start := g.origStartMin + deltaMin
		start = clamp(start, 0, g.dayMin-g.origDurMin)
		g.previewStartMin = start
		g.previewDurMin = g.origDurMin

	case ModeResizeStart:
		end := g.origStartMin + g.origDurMin
		start := g.origStartMin + deltaMin
		start = clamp(start, 0, end-MinDurationMinutes)
		g.previewStartMin = start
		g.previewDurMin = end - start

	case ModeResizeEnd:
		dur := g.origDurMin + deltaMin
		dur = clamp(dur, MinDurationMinutes, g.dayMin-g.origStartMin)
		g.previewStartMin = g.origStartMin
		g.previewDurMin = dur
	}
}

// Preview は現在のプレビュー位置をピクセル（top, height）で返す。
func (g *Gesture) Preview() (top, height float64) {
	return minutesToPixels(g.previewStartMin), minutesToPixels(g.previewDurMin)
}

// Finish はpointer-upでジェスチャを終了し、結果を返す。
// 移動量が閾値を超えなかった場合はクリックとして扱い、位置は変更しない。
// 実ドラッグの場合はプレビュー位置を絶対時刻に戻してコミット対象とする。
func (g *Gesture) Finish(pointerY float64) Outcome {
	g.Update(pointerY)

	if g.maxAbsDeltaPixels <= ClickThresholdPixels {
		return Outcome{Kind: OutcomeClick, EntryID: g.entryID}
	}

	start := g.dayStart.Add(time.Duration(g.previewStartMin * float64(time.Minute)))
	stop := start.Add(time.Duration(g.previewDurMin * float64(time.Minute)))

	return Outcome{
		Kind:    OutcomeCommit,
		EntryID: g.entryID,
		StartAt: start,
		StopAt:  stop,
	}
}

// ClickSuppressor は実ドラッグ確定直後の合成クリックを抑止する。
// pointer-upのドラッグ確定時にArmし、クリックハンドラはSuppressedを確認する。
type ClickSuppressor struct {
	until time.Time

	// now はテストで時計を差し替えるためのフック。
	now func() time.Time
}

// NewClickSuppressor はClickSuppressorを生成する。
func NewClickSuppressor() *ClickSuppressor {
	return &ClickSuppressor{now: time.Now}
}

// Arm は抑止ウィンドウを開始する。
func (s *ClickSuppressor) Arm() {
	s.until = s.now().Add(SuppressClickWindow)
}

// Suppressed はクリックを無視すべきかを返す。
func (s *ClickSuppressor) Suppressed() bool {
	return s.now().Before(s.until)
}

// pixelsToMinutes はタイムラインの固定スケールでピクセルを分に換算する。
func pixelsToMinutes(pixels float64) float64 {
	return pixels * 60.0 / timeline.PixelsPerHour
}

// minutesToPixels は分をピクセルに換算する。
func minutesToPixels(minutes float64) float64 {
	return minutes * timeline.PixelsPerHour / 60.0
}

// snap は分単位の差分を最近傍のグリッド目盛に丸める。
func snap(minutes float64) float64 {
	return math.Round(minutes/SnapMinutes) * SnapMinutes
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
