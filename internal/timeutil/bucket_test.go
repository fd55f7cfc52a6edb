package timeutil

import (
	"testing"
	"time"
)

// TestBucketDate_ShiftsAcrossMidnight はUTC+2（オフセット-120）で
// 23:30Zのエントリが翌日にバケットされることをテストする。
func TestBucketDate_ShiftsAcrossMidnight(t *testing.T) {
	instant := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)

	got := BucketDate(instant, -120)
	if got != "2024-01-02" {
		t.Errorf("BucketDate(23:30Z, -120) = %q, want %q", got, "2024-01-02")
	}
}

// TestBucketDate_NegativeShift はUTC-5（オフセット+300）で
// 早朝のエントリが前日にバケットされることをテストする。
func TestBucketDate_NegativeShift(t *testing.T) {
	instant := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)

	got := BucketDate(instant, 300)
	if got != "2024-01-01" {
		t.Errorf("BucketDate(03:00Z, +300) = %q, want %q", got, "2024-01-01")
	}
}

// TestBucketDate_ZeroOffset はオフセット0でUTCの日付がそのまま使われることをテストする。
func TestBucketDate_ZeroOffset(t *testing.T) {
	instant := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	got := BucketDate(instant, 0)
	if got != "2024-06-15" {
		t.Errorf("BucketDate(12:00Z, 0) = %q, want %q", got, "2024-06-15")
	}
}

// TestClampTZOffset は範囲外のオフセットが端にクランプされることをテストする。
func TestClampTZOffset(t *testing.T) {
	tests := []struct {
		name   string
		offset int
		want   int
	}{
		{"範囲内はそのまま", -120, -120},
		{"下限未満は下限に", -10000, MinTZOffsetMinutes},
		{"上限超過は上限に", 10000, MaxTZOffsetMinutes},
		{"下限ちょうど", -720, -720},
		{"上限ちょうど", 840, 840},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampTZOffset(tt.offset); got != tt.want {
				t.Errorf("ClampTZOffset(%d) = %d, want %d", tt.offset, got, tt.want)
			}
		})
	}
}

// TestDayBounds はローカル日のUTC境界が正しく計算されることをテストする。
func TestDayBounds(t *testing.T) {
	// UTC+2（オフセット-120）の2024-01-02は、UTCでは01-01T22:00から01-02T22:00まで。
	start, end, err := DayBounds("2024-01-02", -120)
	if err != nil {
		t.Fatalf("DayBounds() error = %v", err)
	}

	wantStart := time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 1, 2, 22, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}
	if !end.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", end, wantEnd)
	}
}

// TestDayBounds_InvalidKey は無効な日付キーがエラーになることをテストする。
func TestDayBounds_InvalidKey(t *testing.T) {
	_, _, err := DayBounds("01/02/2024", 0)
	if err == nil {
		t.Fatal("DayBounds() error = nil, want parse error")
	}
}

// TestBucketDate_StableUnderEdit は開始時刻が変わらない限りバケットが
// 安定していることをテストする（説明の編集ではバケットは変わらない）。
func TestBucketDate_StableUnderEdit(t *testing.T) {
	start := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)

	first := BucketDate(start, -120)
	// 説明のみの編集を想定: 開始時刻が同一なら常に同じバケットになる。
	second := BucketDate(start, -120)

	if first != second {
		t.Errorf("bucket changed without start change: %q -> %q", first, second)
	}
}
