// Package ranking はメンバーごとの作業時間ランキングを計算する。
// エントリ単位のキャップと休憩検出を備え、結果は同一入力に対して
// 常に決定的である。ランキング行は永続化されない。
package ranking

import (
	"sort"
	"strings"
	"time"

	"github.com/hitoshi/trackman/internal/model"
)

const (
	// EntryCapSeconds は1エントリがランキングに寄与できる上限（4時間）。
	// 複数日にまたがる誤入力1件がリーダーボードを支配するのを防ぐ。
	EntryCapSeconds = 4 * 3600

	// ExcludedProjectName はランキングから除外される予約プロジェクト名。
	// 照合は大文字小文字無視・前後トリムで行う。
	ExcludedProjectName = "break"
)

// Row はランキングの1行。
type Row struct {
	Member              string    `json:"member"`
	RankedSeconds       int64     `json:"ranked_seconds"`
	EntryCount          int       `json:"entry_count"`
	FirstStart          time.Time `json:"first_start"`
	LastEnd             time.Time `json:"last_end"`
	LongestBreakSeconds int64     `json:"longest_break_seconds"`
}

// Rank は1日（または1週間）分の全メンバーのエントリからランキングを計算する。
//
// メンバーごとのアルゴリズム:
//  1. non_workプロジェクトと予約除外名のエントリを除外する
//  2. 未停止（実行中）のエントリを除外する
//  3. 残りを開始時刻でソートする
//  4. rankedSeconds += min(エントリ秒数, キャップ) を累積する
//  5. 走査中に前の範囲の終了と次の範囲の開始の最大間隔を休憩として記録する
//  6. 最初の開始と最後の終了を記録する
//
// 並び順: rankedSeconds降順、同値はエントリ数降順、最終タイブレークは名前昇順。
func Rank(entries []*model.TimeEntry, projects map[string]*model.Project) []Row {
	byMember := make(map[string][]*model.TimeEntry)
	for _, entry := range entries {
		if entry.StopAt == nil {
			continue // 閉じた範囲のみランキング対象
		}
		if isExcluded(entry, projects) {
			continue
		}
		byMember[entry.Member] = append(byMember[entry.Member], entry)
	}

	rows := make([]Row, 0, len(byMember))
	for member, ranked := range byMember {
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].StartAt.Before(ranked[j].StartAt)
		})

		row := Row{
			Member:     member,
			EntryCount: len(ranked),
			FirstStart: ranked[0].StartAt,
			LastEnd:    *ranked[len(ranked)-1].StopAt,
		}

		var prevEnd time.Time
		for i, entry := range ranked {
			seconds := entrySeconds(entry)
			if seconds > EntryCapSeconds {
				seconds = EntryCapSeconds
			}
			row.RankedSeconds += seconds

			if i > 0 {
				gap := int64(entry.StartAt.Sub(prevEnd) / time.Second)
				if gap > row.LongestBreakSeconds {
					row.LongestBreakSeconds = gap
				}
			}
			if entry.StopAt.After(prevEnd) {
				prevEnd = *entry.StopAt
			}
			if entry.StopAt.After(row.LastEnd) {
				row.LastEnd = *entry.StopAt
			}
		}

		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].RankedSeconds != rows[j].RankedSeconds {
			return rows[i].RankedSeconds > rows[j].RankedSeconds
		}
		if rows[i].EntryCount != rows[j].EntryCount {
			return rows[i].EntryCount > rows[j].EntryCount
		}
		return rows[i].Member < rows[j].Member
	})

	return rows
}

// isExcluded はエントリがランキング対象外かを判定する。
// non_workプロジェクト、および予約除外名のプロジェクトが対象外。
// プロジェクト未設定（No project）は作業として扱う。
func isExcluded(entry *model.TimeEntry, projects map[string]*model.Project) bool {
	if entry.ProjectKey == nil {
		return false
	}
	project, ok := projects[*entry.ProjectKey]
	if !ok {
		return false
	}
	if project.Type == model.ProjectTypeNonWork {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(project.Name), ExcludedProjectName)
}

// entrySeconds はエントリの実測秒数を返す。
// 確定済みのDurationSecondsを優先し、なければ範囲から導出する。
func entrySeconds(entry *model.TimeEntry) int64 {
	if entry.DurationSeconds != nil {
		return *entry.DurationSeconds
	}
	return int64(entry.StopAt.Sub(entry.StartAt) / time.Second)
}
