// Package model はドメインモデルを定義する。
package model

import "time"

// Member はトラッキング対象のメンバーを表す。
// Nameが正準表示名であり、全エントリの識別キーとなる。
// 表記ゆれ（大文字小文字・別名）はエイリアスとして正準名に畳み込まれる。
type Member struct {
	Name      string
	CreatedAt time.Time
}

// MemberAlias はメンバーの別名と正準名の対応を表す。
// Aliasは正規化済み（小文字・トリム・連続空白の圧縮）で保存する。
type MemberAlias struct {
	Alias      string
	MemberName string
}
