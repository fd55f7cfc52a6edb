// Package entry は確定済み時間エントリのCRUD操作と、日次・チーム日次の
// 読み取りビューを提供する。読み取りパスはストア障害時に最後の正常
// スナップショットをstaleフラグ付きで返す（書き込みパスは決して劣化しない）。
package entry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/trackman/internal/model"
	"github.com/hitoshi/trackman/internal/ranking"
	"github.com/hitoshi/trackman/internal/repository"
	"github.com/hitoshi/trackman/internal/timeline"
	"github.com/hitoshi/trackman/internal/timeutil"
)

// MemberResolver はメンバー名を正準名に解決するインターフェース。
type MemberResolver interface {
	Resolve(ctx context.Context, raw string) (*model.Member, error)
}

// MetricsRecorder は読み取りパスの劣化イベントの記録を抽象化するインターフェース。
type MetricsRecorder interface {
	RecordStaleServe(view string)
	RecordStoreFailure(operation string)
}

// DayView は1メンバー・1日分の読み取りビュー。
type DayView struct {
	Member       string             `json:"member"`
	Date         string             `json:"date"`
	Entries      []*model.TimeEntry `json:"entries"`
	Blocks       []timeline.Block   `json:"blocks"`
	TotalSeconds int64              `json:"total_seconds"`
	EntryCount   int                `json:"entry_count"`
	Stale        bool               `json:"stale"`
}

// TeamDayView は全メンバー・1日分の読み取りビュー。
type TeamDayView struct {
	Date    string             `json:"date"`
	Entries []*model.TimeEntry `json:"entries"`
	Ranking []ranking.Row      `json:"ranking"`
	Stale   bool               `json:"stale"`
}

// DeleteResult はDeleteの戻り値。
// WasRunningは削除したエントリが実行中だったかを示す。呼び出し側は
// これを見てタイマー表示をリセットできる。
type DeleteResult struct {
	EntryID    string `json:"entry_id"`
	WasRunning bool   `json:"was_running"`
}

// Service は確定済みエントリの操作と日次ビューの組み立てを担う。
// スナップショットキャッシュはプロセス内のみで、読み取り成功のたびに
// 上書きされる。複数プロセス構成では各プロセスが独立に保持する。
type Service struct {
	entryRepo   repository.EntryRepository
	projectRepo repository.ProjectRepository
	resolver    MemberResolver

	mu        sync.RWMutex
	snapshots map[string]any

	metrics MetricsRecorder // nilの場合は記録しない

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
		snapshots:   make(map[string]any),
		now:         time.Now,
	}
}

// SetMetrics は劣化イベントのメトリクス記録先を設定する。
func (s *Service) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// CreateManual は過去の時間範囲を手動入力で確定済みエントリとして作成する。
// 開始時刻と正の所要時間が必須で、日付バケットは開始時刻から導出する。
func (s *Service) CreateManual(ctx context.Context, rawMember string, description, projectKey *string, startAt time.Time, durationSeconds int64, tzOffsetMinutes int) (*model.TimeEntry, error) {
	m, err := s.resolver.Resolve(ctx, rawMember)
	if err != nil {
		return nil, err
	}

	if startAt.IsZero() {
		return nil, model.NewInvalidRequestError("開始時刻は必須です")
	}
	if durationSeconds <= 0 {
		return nil, model.NewInvalidDurationError(durationSeconds)
	}

	if err := s.validateProject(ctx, projectKey); err != nil {
		return nil, err
	}

	stopAt := startAt.Add(time.Duration(durationSeconds) * time.Second)
	entry := &model.TimeEntry{
		ID:              uuid.NewString(),
		Member:          m.Name,
		Description:     description,
		ProjectKey:      projectKey,
		StartAt:         startAt,
		StopAt:          &stopAt,
		DurationSeconds: &durationSeconds,
		IsRunning:       false,
		Source:          model.EntrySourceManual,
		SourceDate:      timeutil.BucketDate(startAt, tzOffsetMinutes),
	}

	if err := s.entryRepo.Create(ctx, entry); err != nil {
		return nil, model.NewStoreFailureError(err)
	}

	return entry, nil
}

// Update は確定済みエントリの時間範囲とメタデータを書き換える。
// 他メンバーのエントリは書き換えられない（forbidden）。
// stop <= start は検証エラー。日付バケットは新しい開始時刻から再導出する。
// ドラッグ/リサイズのコミットはこの経路を通る。
func (s *Service) Update(ctx context.Context, rawMember, entryID string, description, projectKey *string, startAt, stopAt time.Time, tzOffsetMinutes int) (*model.TimeEntry, error) {
	m, err := s.resolver.Resolve(ctx, rawMember)
	if err != nil {
		return nil, err
	}

	entry, err := s.entryRepo.FindByID(ctx, entryID)
	if err != nil {
		return nil, model.NewStoreFailureError(err)
	}
	if entry == nil {
		return nil, model.NewEntryNotFoundError(entryID)
	}
	if entry.Member != m.Name {
		return nil, model.NewEntryForbiddenError(entryID)
	}

	if startAt.IsZero() || stopAt.IsZero() || !stopAt.After(startAt) {
		return nil, model.NewInvalidTimeRangeError()
	}

	if err := s.validateProject(ctx, projectKey); err != nil {
		return nil, err
	}

	duration := int64(stopAt.Sub(startAt) / time.Second)

	entry.StartAt = startAt
	entry.StopAt = &stopAt
	entry.DurationSeconds = &duration
	entry.IsRunning = false
	entry.SourceDate = timeutil.BucketDate(startAt, tzOffsetMinutes)
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

// Delete はエントリを削除する。他メンバーのエントリは削除できない。
// 削除したエントリが実行中だったかを結果で報告する。
func (s *Service) Delete(ctx context.Context, rawMember, entryID string) (*DeleteResult, error) {
	m, err := s.resolver.Resolve(ctx, rawMember)
	if err != nil {
		return nil, err
	}

	entry, err := s.entryRepo.FindByID(ctx, entryID)
	if err != nil {
		return nil, model.NewStoreFailureError(err)
	}
	if entry == nil {
		return nil, model.NewEntryNotFoundError(entryID)
	}
	if entry.Member != m.Name {
		return nil, model.NewEntryForbiddenError(entryID)
	}

	if err := s.entryRepo.Delete(ctx, entryID); err != nil {
		return nil, model.NewStoreFailureError(err)
	}

	return &DeleteResult{EntryID: entryID, WasRunning: entry.IsRunning}, nil
}

// GetDay は1メンバー・1日分のビューを返す。
// ストア障害時は同一キーの最後の正常スナップショットをStale=trueで返す。
// メンバー解決自体がストア障害で失敗した場合も、リクエストされた名前を
// キーにスナップショットを探す（クライアントは通常正準名でアクセスする）。
// スナップショットがない場合は上流エラーをそのまま返す。
func (s *Service) GetDay(ctx context.Context, rawMember, dateKey string, tzOffsetMinutes int) (*DayView, error) {
	dayStart, dayEnd, err := timeutil.DayBounds(dateKey, tzOffsetMinutes)
	if err != nil {
		return nil, model.NewInvalidRequestError(err.Error())
	}

	m, err := s.resolver.Resolve(ctx, rawMember)
	if err != nil {
		if isStoreFailure(err) {
			return s.staleDayView("day|"+rawMember+"|"+dateKey, err)
		}
		return nil, err
	}

	key := "day|" + m.Name + "|" + dateKey

	entries, err := s.entryRepo.ListByMemberAndDate(ctx, m.Name, dateKey)
	if err != nil {
		return s.staleDayView(key, err)
	}

	projects, err := s.loadProjects(ctx, entries)
	if err != nil {
		return s.staleDayView(key, err)
	}

	now := s.now()
	view := &DayView{
		Member:     m.Name,
		Date:       dateKey,
		Entries:    entries,
		Blocks:     timeline.Layout(entries, dayStart, dayEnd, now, tzOffsetMinutes, projects),
		EntryCount: len(entries),
	}
	for _, e := range entries {
		view.TotalSeconds += e.ElapsedSeconds(now)
	}

	s.storeSnapshot(key, view)
	return view, nil
}

// GetTeamDay は全メンバー・1日分のビューをランキング付きで返す。
// 劣化時の振る舞いはGetDayと同じ。
func (s *Service) GetTeamDay(ctx context.Context, dateKey string, tzOffsetMinutes int) (*TeamDayView, error) {
	if _, _, err := timeutil.DayBounds(dateKey, tzOffsetMinutes); err != nil {
		return nil, model.NewInvalidRequestError(err.Error())
	}

	key := "team|" + dateKey

	entries, err := s.entryRepo.ListByDate(ctx, dateKey)
	if err != nil {
		return s.staleTeamView(key, err)
	}

	projects, err := s.loadProjects(ctx, entries)
	if err != nil {
		return s.staleTeamView(key, err)
	}

	view := &TeamDayView{
		Date:    dateKey,
		Entries: entries,
		Ranking: ranking.Rank(entries, projects),
	}

	s.storeSnapshot(key, view)
	return view, nil
}

// loadProjects はエントリ群が参照するプロジェクトをまとめて取得する。
func (s *Service) loadProjects(ctx context.Context, entries []*model.TimeEntry) (map[string]*model.Project, error) {
	seen := make(map[string]bool)
	keys := make([]string, 0)
	for _, e := range entries {
		if e.ProjectKey == nil || seen[*e.ProjectKey] {
			continue
		}
		seen[*e.ProjectKey] = true
		keys = append(keys, *e.ProjectKey)
	}

	projects := make(map[string]*model.Project, len(keys))
	if len(keys) == 0 {
		return projects, nil
	}

	list, err := s.projectRepo.ListByKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		projects[p.Key] = p
	}
	return projects, nil
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

// storeSnapshot は読み取り成功時のビューをキャッシュする。
func (s *Service) storeSnapshot(key string, view any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[key] = view
}

// staleDayView はストア障害時に最後の正常スナップショットをStale=trueで返す。
// スナップショットがない場合は上流エラーを返す。
func (s *Service) staleDayView(key string, cause error) (*DayView, error) {
	if s.metrics != nil {
		s.metrics.RecordStoreFailure("day")
	}

	s.mu.RLock()
	cached, ok := s.snapshots[key]
	s.mu.RUnlock()

	if snap, valid := cached.(*DayView); ok && valid {
		if s.metrics != nil {
			s.metrics.RecordStaleServe("day")
		}
		stale := *snap
		stale.Stale = true
		return &stale, nil
	}
	return nil, asStoreFailure(cause)
}

// staleTeamView はGetTeamDay用のstaleDayView相当。
func (s *Service) staleTeamView(key string, cause error) (*TeamDayView, error) {
	if s.metrics != nil {
		s.metrics.RecordStoreFailure("team")
	}

	s.mu.RLock()
	cached, ok := s.snapshots[key]
	s.mu.RUnlock()

	if snap, valid := cached.(*TeamDayView); ok && valid {
		if s.metrics != nil {
			s.metrics.RecordStaleServe("team")
		}
		stale := *snap
		stale.Stale = true
		return &stale, nil
	}
	return nil, asStoreFailure(cause)
}

// isStoreFailure はエラーがストア障害（上流カテゴリ）かを判定する。
func isStoreFailure(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeStoreFailure
}

// asStoreFailure はcauseをストア障害エラーとして返す。
// すでにストア障害エラーの場合は二重に包まない。
func asStoreFailure(cause error) error {
	if isStoreFailure(cause) {
		return cause
	}
	return model.NewStoreFailureError(cause)
}
