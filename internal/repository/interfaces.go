// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/trackman/internal/model"
)

// MemberRepository はメンバーデータの永続化インターフェース。
type MemberRepository interface {
	// FindByName は正準名でメンバーを取得する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Member, error)

	// FindByNormalizedName は正規化済みの名前で正準名を大文字小文字無視で検索する。
	// 見つからない場合はnilを返す。
	FindByNormalizedName(ctx context.Context, normalized string) (*model.Member, error)

	// FindByAlias は正規化済みエイリアスでメンバーを検索する。見つからない場合はnilを返す。
	FindByAlias(ctx context.Context, alias string) (*model.Member, error)
}

// ProjectRepository はプロジェクトデータの永続化インターフェース。
type ProjectRepository interface {
	// FindByKey は指定キーのプロジェクトを取得する。見つからない場合はnilを返す。
	FindByKey(ctx context.Context, key string) (*model.Project, error)

	// ListByKeys は指定キー群のプロジェクトをまとめて取得する。
	ListByKeys(ctx context.Context, keys []string) ([]*model.Project, error)
}

// EntryRepository は時間エントリの永続化インターフェース。
// エンジンは権威コピーを保持せず、全ての変更はストアへの読み書きで行う。
type EntryRepository interface {
	// FindByID は指定IDのエントリを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.TimeEntry, error)

	// FindRunningByMember はメンバーの実行中エントリをstart_at降順で全件返す。
	// 不変条件下では高々1件だが、過去の競合で重複した行も検出できるよう全件を返す。
	FindRunningByMember(ctx context.Context, member string) ([]*model.TimeEntry, error)

	// Create はエントリを作成する。
	Create(ctx context.Context, entry *model.TimeEntry) error

	// Update はエントリをIDで特定して上書き更新する。
	Update(ctx context.Context, entry *model.TimeEntry) error

	// Delete は指定IDのエントリを削除する。
	Delete(ctx context.Context, id string) error

	// ListByMemberAndDate はメンバーの指定日（source_date）のエントリをstart_at昇順で返す。
	ListByMemberAndDate(ctx context.Context, member, dateKey string) ([]*model.TimeEntry, error)

	// ListByDate は全メンバーの指定日のエントリをstart_at昇順で返す。
	ListByDate(ctx context.Context, dateKey string) ([]*model.TimeEntry, error)
}

// IdempotencyRepository は冪等性レコードの永続化インターフェース。
type IdempotencyRepository interface {
	// Find は(scope, member, key)で未失効のレコードを取得する。
	// 見つからない、または失効済みの場合はnilを返す。
	Find(ctx context.Context, scope, member, key string, now time.Time) (*model.IdempotencyRecord, error)

	// Upsert はレコードを保存する。同一キーの既存レコードは上書きする（後勝ち）。
	Upsert(ctx context.Context, record *model.IdempotencyRecord) error

	// DeleteExpired は指定時刻より前に失効したレコードを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
