package model

// ProjectType はプロジェクトの種別を表す。
type ProjectType string

const (
	// ProjectTypeWork は作業時間としてランキングに計上されるプロジェクト。
	ProjectTypeWork ProjectType = "work"
	// ProjectTypeNonWork はランキングから除外されるプロジェクト（休憩など）。
	ProjectTypeNonWork ProjectType = "non_work"
)

// Project は時間エントリの分類先プロジェクトを表す。
type Project struct {
	Key   string
	Name  string
	Color string
	Type  ProjectType
}

// IsWork は作業プロジェクトかどうかを返す。
func (p *Project) IsWork() bool {
	return p.Type == ProjectTypeWork
}
