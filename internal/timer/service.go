// Package timer は実行中タイマーのライフサイクル管理を提供する。
// 不変条件「1メンバーにつき実行中エントリは高々1件」をサービス層の規約として
// 強制する。状態機械はIdle（実行中なし）とRunning（実行中1件）の2状態で、
// start/stop/メタデータ更新/バックデートにより遷移し、終端状態を持たない。
package timer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/trackman/internal/model"
	"github.com/hitoshi/trackman/internal/repository"
	"github.com/hitoshi/trackman/internal/timeutil"
)

// MemberResolver はメンバー名を正準名に解決するインターフェース。
type MemberResolver interface {
	// Resolve はメンバー名を正準名に解決する。解決できない場合はエラーを返す。
	Resolve(ctx context.Context, raw string) (*model.Member, error)
}

// Service は実行中タイマーの管理サービス。
// プロセス内ロックは持たない。権威状態は外部ストアにあり、全操作は
// 読み取り後書き込みで行う。同一メンバーへの同時startの競合窓は許容し、
// startの冪等性（既存タイマーへの収束）とstopの全件停止で収束させる。
type Service struct {
	entryRepo   repository.EntryRepository
	projectRepo repository.ProjectRepository
	resolver    MemberResolver

	// now はテストで時計を差し替えるためのフック。
	now func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	entryRepo repository.EntryRepository,
	projectRepo repository.ProjectRepository,
	resolver MemberResolver,
) *Service {
	return &Service{
		entryRepo:   entryRepo,
		projectRepo: projectRepo,
		resolver:    resolver,
		now:         time.Now,
	}
}

// StartResult はStartの戻り値。
// Startedがfalseの場合、Entryは既存の実行中エントリをそのまま返している。
type StartResult struct {
	Entry   *model.TimeEntry
	Started bool
}

// StopResult はStopの戻り値。
// StoppedCountは停止した行数。不変条件下では1だが、過去の競合で
// 重複していた場合は2以上になり得る。
type StopResult struct {
	Entry        *model.TimeEntry
	StoppedCount int
}

// Start はタイマーを開始する。
// 既に実行中エントリが存在する場合はそれを無変更で返す（Started=false）。
// 複数タブからの同時startは収束する必要があるため、エラーにはしない。
// elapsedSecondsBackfillが指定された場合、開始時刻をその分過去にずらす。
// クライアントキーなしでも、この構造によりstartは冪等である。
func (s *Service) Start(ctx context.Context, rawMember string, description, projectKey *string, elapsedSecondsBackfill int64) (*StartResult, error) {
	m, err := s.resolver.Resolve(ctx, rawMember)
	if err != nil {
		return nil, err
	}

	if elapsedSecondsBackfill < 0 {
		return nil, model.NewInvalidDurationError(elapsedSecondsBackfill)
	}

	running, err := s.entryRepo.FindRunningByMember(ctx, m.Name)
	if err != nil {
		return nil, model.NewStoreFailureError(err)
	}
	if len(running) > 0 {
		return &StartResult{Entry: running[0], Started: false}, nil
	}

	if err := s.validateProject(ctx, projectKey); err != nil {
		return nil, err
	}

	now := s.now()
	startAt := now.Add(-time.Duration(elapsedSecondsBackfill) * time.Second)

	entry := &model.TimeEntry{
		ID:          uuid.NewString(),
		Member:      m.Name,
		Description: description,
		ProjectKey:  projectKey,
		StartAt:     startAt,
		IsRunning:   true,
		Source:      model.EntrySourceManual,
		// 開始時点ではクライアントTZが不明なためUTCで仮バケットする。
		// 確定バケットはstop/backdateがエントリ自身の開始時刻から再導出する。
		SourceDate: timeutil.BucketDate(startAt, 0),
	}

	if err := s.entryRepo.Create(ctx, entry); err != nil {
		return nil, model.NewStoreFailureError(err)
	}

	return &StartResult{Entry: entry, Started: true}, nil
}

// Stop は実行中タイマーを停止し、確定したエントリを返す。
// 実行中エントリが存在しない場合は競合エラー（NO_RUNNING_TIMER）を返す。
// 黙殺せずに報告することで、呼び出し側がUI状態を再整合できる。
// 過去の競合で複数行が実行中フラグを持つ場合は全件停止し、
// 最も新しい行を結果として報告する。
// 日付バケットは「現在時刻」ではなくエントリ自身の開始時刻から導出する。
func (s *Service) Stop(ctx context.Context, rawMember string, tzOffsetMinutes int) (*StopResult, error) {
	m, err := s.resolver.Resolve(ctx, rawMember)
	if err != nil {
		return nil, err
	}

	running, err := s.entryRepo.FindRunningByMember(ctx, m.Name)
	if err != nil {
		return nil, model.NewStoreFailureError(err)
	}
	if len(running) == 0 {
		return nil, model.NewNoRunningTimerError(m.Name)
	}

	now := s.now()
	for _, entry := range running {
		duration := int64(now.Sub(entry.StartAt) / time.Second)
		stopAt := now

		entry.StopAt = &stopAt
		entry.DurationSeconds = &duration
		entry.IsRunning = false
		entry.SourceDate = timeutil.BucketDate(entry.StartAt, tzOffsetMinutes)

		if err := s.entryRepo.Update(ctx, entry); err != nil {
			return nil, model.NewStoreFailureError(err)
		}
	}

	// FindRunningByMemberはstart_at降順のため先頭が最新
	return &StopResult{Entry: running[0], StoppedCount: len(running)}, nil
}

// UpdateMetadata は実行中エントリの説明とプロジェクトのみを差し替える。
// 開始・停止時刻と所要時間には触れない。nilのフィールドは変更しない。
// 実行中エントリが存在しない場合はno-op（nilを返す）。
func (s *Service) UpdateMetadata(ctx context.Context, rawMember string, description, projectKey *string) (*model.TimeEntry, error) {
	m, err := s.resolver.Resolve(ctx, rawMember)
	if err != nil {
		return nil, err
	}

	running, err := s.entryRepo.FindRunningByMember(ctx, m.Name)
	if err != nil {
		return nil, model.NewStoreFailureError(err)
	}
	if len(running) == 0 {
		return nil, nil
	}

	if err := s.validateProject(ctx, projectKey); err != nil {
		return nil, err
	}

	entry := running[0]
	if description != nil {
		entry.Description = description
	}
	if projectKey != nil {
		entry.ProjectKey = projectKey
	}

	if err := s.entryRepo.Update(ctx, entry); err != nil {
		return nil, model.NewStoreFailureError(err)
	}

	return entry, nil
}

// Backdate はクライアントが報告した権威的な経過秒数で実行中エントリを補正する。
// 開始時刻をnow - elapsedSecondsに再計算し、日付バケットを新しい開始時刻から
// 再導出し、説明とプロジェクトを適用する。再接続後の復元などで使用する。
// 実行中エントリが存在しない場合はno-op（nilを返す）。
func (s *Service) Backdate(ctx context.Context, rawMember string, elapsedSeconds int64, description, projectKey *string, tzOffsetMinutes int) (*model.TimeEntry, error) {
	m, err := s.resolver.Resolve(ctx, rawMember)
	if err != nil {
		return nil, err
	}

	if elapsedSeconds <= 0 {
		return nil, model.NewInvalidDurationError(elapsedSeconds)
	}

	running, err := s.entryRepo.FindRunningByMember(ctx, m.Name)
	if err != nil {
		return nil, model.NewStoreFailureError(err)
	}
	if len(running) == 0 {
		return nil, nil
	}

	if err := s.validateProject(ctx, projectKey); err != nil {
		return nil, err
	}

	entry := running[0]
	now := s.now()

	entry.StartAt = now.Add(-time.Duration(elapsedSeconds) * time.Second)
	entry.DurationSeconds = &elapsedSeconds
	entry.SourceDate = timeutil.BucketDate(entry.StartAt, tzOffsetMinutes)
	if description != nil {
		entry.Description = description
	}
	if projectKey != nil {
		entry.ProjectKey = projectKey
	}

	if err := s.entryRepo.Update(ctx, entry); err != nil {
		return nil, model.NewStoreFailureError(err)
	}

	return entry, nil
}

// GetRunning は実行中エントリの射影を返す。実行中でない場合はnilを返す。
// 経過秒数は射影時点の時刻から導出する。
func (s *Service) GetRunning(ctx context.Context, rawMember string) (*model.RunningEntry, error) {
	m, err := s.resolver.Resolve(ctx, rawMember)
	if err != nil {
		return nil, err
	}

	running, err := s.entryRepo.FindRunningByMember(ctx, m.Name)
	if err != nil {
		return nil, model.NewStoreFailureError(err)
	}
	if len(running) == 0 {
		return nil, nil
	}

	entry := running[0]
	return &model.RunningEntry{
		ID:             entry.ID,
		Member:         entry.Member,
		Description:    entry.Description,
		ProjectKey:     entry.ProjectKey,
		StartAt:        entry.StartAt,
		ElapsedSeconds: int64(s.now().Sub(entry.StartAt) / time.Second),
	}, nil
}

// validateProject はプロジェクトキーが指定されている場合に存在確認する。
func (s *Service) validateProject(ctx context.Context, projectKey *string) error {
	if projectKey == nil || *projectKey == "" {
		return nil
	}

	project, err := s.projectRepo.FindByKey(ctx, *projectKey)
	if err != nil {
		return model.NewStoreFailureError(err)
	}
	if project == nil {
		return model.NewProjectNotFoundError(*projectKey)
	}

	return nil
}
