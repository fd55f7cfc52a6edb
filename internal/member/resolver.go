// Package member はメンバー名の解決（エイリアスの正準名への畳み込み）を提供する。
// 全ての操作はメンバー解決を経てから実行される。
package member

import (
	"context"
	"strings"

	"github.com/hitoshi/trackman/internal/model"
	"github.com/hitoshi/trackman/internal/repository"
)

// Resolver は表記ゆれのあるメンバー名を正準表示名に解決する。
type Resolver struct {
	memberRepo repository.MemberRepository
}

// NewResolver はResolverを生成する。
func NewResolver(memberRepo repository.MemberRepository) *Resolver {
	return &Resolver{memberRepo: memberRepo}
}

// Normalize はメンバー名の照合用キーを生成する。
// トリム・小文字化・連続空白の1スペースへの圧縮を行う。
func Normalize(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

// Resolve はメンバー名を正準名に解決する。
// エイリアステーブルを優先し、次に正準名の完全一致、最後に大文字小文字
// 無視の一致を試みる。どれでも解決できない場合はMEMBER_NOT_FOUNDエラーを返す。
func (r *Resolver) Resolve(ctx context.Context, raw string) (*model.Member, error) {
	normalized := Normalize(raw)
	if normalized == "" {
		return nil, model.NewInvalidRequestError("メンバー名が空です")
	}

	m, err := r.memberRepo.FindByAlias(ctx, normalized)
	if err != nil {
		return nil, model.NewStoreFailureError(err)
	}
	if m != nil {
		return m, nil
	}

	// クライアントは通常正準名でアクセスするため、正規化照合の前に
	// 完全一致を試す
	m, err = r.memberRepo.FindByName(ctx, strings.TrimSpace(raw))
	if err != nil {
		return nil, model.NewStoreFailureError(err)
	}
	if m != nil {
		return m, nil
	}

	m, err = r.memberRepo.FindByNormalizedName(ctx, normalized)
	if err != nil {
		return nil, model.NewStoreFailureError(err)
	}
	if m != nil {
		return m, nil
	}

	return nil, model.NewMemberNotFoundError(raw)
}
