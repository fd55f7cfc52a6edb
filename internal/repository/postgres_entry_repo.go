package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/trackman/internal/model"
	"github.com/hitoshi/trackman/internal/timeutil"
)

// PostgresEntryRepo はPostgreSQLを使用した時間エントリリポジトリ。
type PostgresEntryRepo struct {
	db *sql.DB
}

// NewPostgresEntryRepo はPostgresEntryRepoを生成する。
func NewPostgresEntryRepo(db *sql.DB) *PostgresEntryRepo {
	return &PostgresEntryRepo{db: db}
}

// entryColumns はtime_entriesのSELECT句で使用するカラムリスト。
const entryColumns = `id, member, description, project_key, start_at, stop_at,
	        duration_seconds, is_running, source, source_date, created_at, updated_at`

// scanEntry は1行分のtime_entriesをmodel.TimeEntryにスキャンする。
func scanEntry(scan func(dest ...any) error) (*model.TimeEntry, error) {
	entry := &model.TimeEntry{}
	var description, projectKey sql.NullString
	var stopAt sql.NullTime
	var durationSeconds sql.NullInt64
	var sourceDate time.Time

	err := scan(
		&entry.ID, &entry.Member, &description, &projectKey, &entry.StartAt, &stopAt,
		&durationSeconds, &entry.IsRunning, &entry.Source, &sourceDate,
		&entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		entry.Description = &description.String
	}
	if projectKey.Valid {
		entry.ProjectKey = &projectKey.String
	}
	if stopAt.Valid {
		t := stopAt.Time
		entry.StopAt = &t
	}
	if durationSeconds.Valid {
		d := durationSeconds.Int64
		entry.DurationSeconds = &d
	}
	entry.SourceDate = sourceDate.Format(timeutil.DateKeyFormat)

	return entry, nil
}

// FindByID は指定IDのエントリを取得する。見つからない場合はnilを返す。
func (r *PostgresEntryRepo) FindByID(ctx context.Context, id string) (*model.TimeEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE id = $1`,
		id,
	)

	entry, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("エントリの取得に失敗しました: %w", err)
	}

	return entry, nil
}

// FindRunningByMember はメンバーの実行中エントリをstart_at降順で全件返す。
func (r *PostgresEntryRepo) FindRunningByMember(ctx context.Context, member string) ([]*model.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+`
		 FROM time_entries
		 WHERE member = $1 AND is_running
		 ORDER BY start_at DESC`,
		member,
	)
	if err != nil {
		return nil, fmt.Errorf("実行中エントリの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// Create はエントリを作成する。
func (r *PostgresEntryRepo) Create(ctx context.Context, entry *model.TimeEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO time_entries
		 (id, member, description, project_key, start_at, stop_at,
		  duration_seconds, is_running, source, source_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`,
		entry.ID, entry.Member, entry.Description, entry.ProjectKey,
		entry.StartAt, entry.StopAt, entry.DurationSeconds,
		entry.IsRunning, entry.Source, entry.SourceDate,
	)
	if err != nil {
		return fmt.Errorf("エントリの作成に失敗しました: %w", err)
	}

	return nil
}

// Update はエントリをIDで特定して上書き更新する。
func (r *PostgresEntryRepo) Update(ctx context.Context, entry *model.TimeEntry) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE time_entries
		 SET description = $2, project_key = $3, start_at = $4, stop_at = $5,
		     duration_seconds = $6, is_running = $7, source_date = $8, updated_at = now()
		 WHERE id = $1`,
		entry.ID, entry.Description, entry.ProjectKey, entry.StartAt, entry.StopAt,
		entry.DurationSeconds, entry.IsRunning, entry.SourceDate,
	)
	if err != nil {
		return fmt.Errorf("エントリの更新に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("更新対象のエントリが存在しません: %s", entry.ID)
	}

	return nil
}

// Delete は指定IDのエントリを削除する。
func (r *PostgresEntryRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM time_entries WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("エントリの削除に失敗しました: %w", err)
	}

	return nil
}

// ListByMemberAndDate はメンバーの指定日のエントリをstart_at昇順で返す。
func (r *PostgresEntryRepo) ListByMemberAndDate(ctx context.Context, member, dateKey string) ([]*model.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+`
		 FROM time_entries
		 WHERE member = $1 AND source_date = $2
		 ORDER BY start_at ASC`,
		member, dateKey,
	)
	if err != nil {
		return nil, fmt.Errorf("日次エントリの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// ListByDate は全メンバーの指定日のエントリをstart_at昇順で返す。
func (r *PostgresEntryRepo) ListByDate(ctx context.Context, dateKey string) ([]*model.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+`
		 FROM time_entries
		 WHERE source_date = $1
		 ORDER BY start_at ASC`,
		dateKey,
	)
	if err != nil {
		return nil, fmt.Errorf("チーム日次エントリの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// collectEntries はrowsの全行をスキャンして返す。
func collectEntries(rows *sql.Rows) ([]*model.TimeEntry, error) {
	var entries []*model.TimeEntry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("エントリ行のスキャンに失敗しました: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("エントリ一覧の読み取りに失敗しました: %w", err)
	}

	return entries, nil
}
