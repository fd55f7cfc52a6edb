// Package timeutil はUTC時刻とクライアントTZオフセットから
// メンバーローカルのカレンダー日付を導出する純粋関数を提供する。
package timeutil

import (
	"fmt"
	"time"
)

// TZオフセット（分）の許容範囲。範囲外の値は不正入力として端にクランプする。
const (
	MinTZOffsetMinutes = -720
	MaxTZOffsetMinutes = 840
)

// DateKeyFormat は日付バケットキーの形式（YYYY-MM-DD）。
const DateKeyFormat = "2006-01-02"

// ClampTZOffset はTZオフセットを許容範囲にクランプする。
func ClampTZOffset(tzOffsetMinutes int) int {
	if tzOffsetMinutes < MinTZOffsetMinutes {
		return MinTZOffsetMinutes
	}
	if tzOffsetMinutes > MaxTZOffsetMinutes {
		return MaxTZOffsetMinutes
	}
	return tzOffsetMinutes
}

// LocalTime はUTC時刻をクライアントTZオフセットでローカル時刻にシフトする。
// オフセットはJavaScriptのgetTimezoneOffset()と同じ符号規約
// （UTC − ローカル、UTC+2なら-120）を使用する。
func LocalTime(instant time.Time, tzOffsetMinutes int) time.Time {
	offset := ClampTZOffset(tzOffsetMinutes)
	return instant.UTC().Add(-time.Duration(offset) * time.Minute)
}

// BucketDate はUTC時刻とTZオフセットからメンバーローカルの
// カレンダー日付キー（YYYY-MM-DD）を導出する。
// 常にエントリの開始時刻から導出すること。後からエントリが編集されても
// 日付の所属が安定するよう、「現在時刻」からは決して導出しない。
func BucketDate(instant time.Time, tzOffsetMinutes int) string {
	return LocalTime(instant, tzOffsetMinutes).Format(DateKeyFormat)
}

// DayBounds は日付キーとTZオフセットから、そのローカル日の
// [開始, 終了) に対応するUTC時刻の範囲を返す。
func DayBounds(dateKey string, tzOffsetMinutes int) (time.Time, time.Time, error) {
	day, err := time.Parse(DateKeyFormat, dateKey)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("無効な日付キーです: %w", err)
	}

	offset := ClampTZOffset(tzOffsetMinutes)

	// ローカル0時のUTC時刻 = ローカル時刻 + オフセット
	start := day.Add(time.Duration(offset) * time.Minute)
	end := start.Add(24 * time.Hour)
	return start, end, nil
}
