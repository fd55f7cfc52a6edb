// Package timeline は1日分のエントリを重なりのない描画用ブロック列に
// 変換するレイアウトエンジンを提供する。ブロックはピクセル非依存の
// 論理単位（固定スケール）で表現され、永続化されない。
package timeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/hitoshi/trackman/internal/model"
	"github.com/hitoshi/trackman/internal/timeutil"
)

// レイアウト定数。
const (
	// PixelsPerHour はタイムライン軸の固定スケール（1時間あたりの高さ）。
	PixelsPerHour = 60.0

	// MinBlockMinutes はブロックの最小表示高さ（分換算）。
	// これ未満のエントリも識別・クリック可能な高さを確保する。
	// 論理的な所要時間ラベルには影響しない。
	MinBlockMinutes = 10.0
)

// Block は1エントリのタイムライン上の描画用射影。
// 1回のレイアウト計算の間だけ存在し、キャッシュされない。
type Block struct {
	ID            string  `json:"id"`
	Top           float64 `json:"top"`
	Height        float64 `json:"height"`
	Title         string  `json:"title"`
	ProjectLabel  string  `json:"project_label"`
	ProjectColor  string  `json:"project_color"`
	TimeRange     string  `json:"time_range"`
	DurationLabel string  `json:"duration_label"`
}

// Layout は1メンバー・1日分のエントリをブロック列に変換する。
// dayStart/dayEndはその日の[開始, 終了)のUTC境界、nowは実行中エントリの
// クリップに使用する。tzOffsetMinutesは時刻ラベルのローカル表示に使用する。
//
// 重なり処理は「押し下げ」方式を採用する: クリップ後に前のブロックと視覚的に
// 重なる場合、後のブロックは前のブロックの下端から始まる。
// これは逐次的な非重複ヒューリスティックであり、複数レーンのパッカーではない。
func Layout(entries []*model.TimeEntry, dayStart, dayEnd, now time.Time, tzOffsetMinutes int, projects map[string]*model.Project) []Block {
	sorted := make([]*model.TimeEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartAt.Before(sorted[j].StartAt)
	})

	blocks := make([]Block, 0, len(sorted))
	prevBottom := 0.0

	for _, entry := range sorted {
		effEnd := effectiveEnd(entry, now)

		// 日境界でクリップし、可視時間が残らないエントリは捨てる
		clipStart := maxTime(entry.StartAt, dayStart)
		clipEnd := minTime(effEnd, dayEnd)
		if !clipEnd.After(clipStart) {
			continue
		}

		top := offsetPixels(dayStart, clipStart)
		height := offsetPixels(clipStart, clipEnd)

		// 最小表示高さの確保（ラベルの論理時間は膨らまさない）
		minHeight := MinBlockMinutes * PixelsPerHour / 60.0
		if height < minHeight {
			height = minHeight
		}

		// 押し下げ: 前のブロックと重なる場合は直後に配置する
		if top < prevBottom {
			top = prevBottom
		}
		prevBottom = top + height

		blocks = append(blocks, Block{
			ID:            entry.ID,
			Top:           top,
			Height:        height,
			Title:         titleOf(entry),
			ProjectLabel:  projectLabelOf(entry, projects),
			ProjectColor:  projectColorOf(entry, projects),
			TimeRange:     timeRangeLabel(entry.StartAt, effEnd, tzOffsetMinutes),
			DurationLabel: FormatDuration(entry.ElapsedSeconds(now)),
		})
	}

	return blocks
}

// effectiveEnd はエントリの実効終了時刻を返す。
// 停止済みならstop、所要時間が既知ならstart+duration、どちらもなければnow。
func effectiveEnd(entry *model.TimeEntry, now time.Time) time.Time {
	if entry.StopAt != nil {
		return *entry.StopAt
	}
	if entry.DurationSeconds != nil {
		return entry.StartAt.Add(time.Duration(*entry.DurationSeconds) * time.Second)
	}
	return now
}

// maxTime は2時刻のうち遅い方を返す。
func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// minTime は2時刻のうち早い方を返す。
func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// offsetPixels は2時刻の差をピクセルに換算する。
func offsetPixels(from, to time.Time) float64 {
	return to.Sub(from).Minutes() * PixelsPerHour / 60.0
}

// titleOf はブロックタイトルを返す。説明がない場合のフォールバックを含む。
func titleOf(entry *model.TimeEntry) string {
	if entry.Description != nil && *entry.Description != "" {
		return *entry.Description
	}
	return "(No description)"
}

// projectLabelOf はプロジェクト表示名を返す。未設定の場合のフォールバックを含む。
func projectLabelOf(entry *model.TimeEntry, projects map[string]*model.Project) string {
	if entry.ProjectKey == nil {
		return "No project"
	}
	if p, ok := projects[*entry.ProjectKey]; ok {
		return p.Name
	}
	return *entry.ProjectKey
}

// projectColorOf はプロジェクトの色を返す。未設定の場合は空文字を返す。
func projectColorOf(entry *model.TimeEntry, projects map[string]*model.Project) string {
	if entry.ProjectKey == nil {
		return ""
	}
	if p, ok := projects[*entry.ProjectKey]; ok {
		return p.Color
	}
	return ""
}

// timeRangeLabel はエントリの時間帯をローカル時刻の "HH:MM - HH:MM" で整形する。
func timeRangeLabel(start, end time.Time, tzOffsetMinutes int) string {
	localStart := timeutil.LocalTime(start, tzOffsetMinutes)
	localEnd := timeutil.LocalTime(end, tzOffsetMinutes)
	return localStart.Format("15:04") + " - " + localEnd.Format("15:04")
}

// FormatDuration は秒数を人間向けの所要時間ラベルに整形する。
// 例: "1h 30m"、"45m"、"30s"。
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
