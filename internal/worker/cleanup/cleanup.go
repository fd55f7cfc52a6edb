// Package cleanup は失効済み冪等性レコードの自動削除ジョブを提供する。
// 再送保護のTTL（成功180秒・失敗90秒）を過ぎたレコードを定期バッチで
// 削除し、idempotency_recordsテーブルの肥大化を防ぐ。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Purger は失効済みレコードの削除を抽象化するインターフェース。
// idempotency.Cacheを受け付けることができる。
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// MetricsRecorder は削除件数のメトリクス記録を抽象化するインターフェース。
type MetricsRecorder interface {
	RecordRecordsPurged(count int64)
}

// CleanupJob は失効済み冪等性レコードの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	purger  Purger
	logger  *slog.Logger
	metrics MetricsRecorder // nilの場合は記録しない

	Interval time.Duration // 定期実行の間隔（デフォルト: 10分）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの実行間隔は10分。
func NewCleanupJob(purger Purger, logger *slog.Logger, metrics MetricsRecorder) *CleanupJob {
	return &CleanupJob{
		purger:   purger,
		logger:   logger,
		metrics:  metrics,
		Interval: 10 * time.Minute,
	}
}

// Run は失効済みレコードを1回削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	purgedCount, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		j.logger.Error("冪等性レコードのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("冪等性レコードのクリーンアップに失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordRecordsPurged(purgedCount)
	}

	duration := time.Since(start)
	j.logger.Info("冪等性レコードのクリーンアップが完了しました",
		slog.Int64("purged_count", purgedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start はIntervalごとにRunを実行するループを開始する。
// コンテキストのキャンセルで停止する。1回の失敗でループは止めない
// （一時的なストア障害は次の周期で回復し得る）。
func (j *CleanupJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップワーカーを開始しました",
		slog.Duration("interval", j.Interval),
	)

	for {
		select {
		case <-ticker.C:
			if err := j.Run(ctx); err != nil && ctx.Err() != nil {
				return
			}
		case <-ctx.Done():
			j.logger.Info("クリーンアップワーカーを停止しました")
			return
		}
	}
}
