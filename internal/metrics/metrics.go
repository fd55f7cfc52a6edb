// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// 利用側（ハンドラー・サービス・ワーカー）はそれぞれ必要なメソッドだけを
// 切り出したインターフェース越しに受け取る。
type Collector struct {
	timerStarts       prometheus.Counter
	timerStops        prometheus.Counter
	idempotencyReplay *prometheus.CounterVec
	staleServes       *prometheus.CounterVec
	storeFailures     *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
	requestLatency    prometheus.Histogram
	recordsPurged     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		timerStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackman_timer_starts_total",
			Help: "タイマー開始の合計数",
		}),
		timerStops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackman_timer_stops_total",
			Help: "タイマー停止の合計数",
		}),
		idempotencyReplay: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackman_idempotency_replay_total",
			Help: "冪等性キャッシュから再生されたレスポンスの合計数",
		}, []string{"scope"}),
		staleServes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackman_stale_serve_total",
			Help: "staleスナップショットで応答した読み取りの合計数",
		}, []string{"view"}),
		storeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackman_store_failure_total",
			Help: "ストア操作失敗の合計数",
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trackman_request_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		recordsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackman_idempotency_purged_total",
			Help: "クリーンアップで削除された冪等性レコードの合計数",
		}),
	}

	reg.MustRegister(
		c.timerStarts,
		c.timerStops,
		c.idempotencyReplay,
		c.staleServes,
		c.storeFailures,
		c.httpStatus,
		c.requestLatency,
		c.recordsPurged,
	)

	return c
}

// RecordTimerStart はタイマー開始を記録する。
func (c *Collector) RecordTimerStart(member string) {
	c.timerStarts.Inc()
}

// RecordTimerStop はタイマー停止を記録する。
func (c *Collector) RecordTimerStop(member string) {
	c.timerStops.Inc()
}

// RecordIdempotencyReplay は再送保護キャッシュからの再生を記録する。
func (c *Collector) RecordIdempotencyReplay(scope string) {
	c.idempotencyReplay.WithLabelValues(scope).Inc()
}

// RecordStaleServe はstaleスナップショットでの応答を記録する。
func (c *Collector) RecordStaleServe(view string) {
	c.staleServes.WithLabelValues(view).Inc()
}

// RecordStoreFailure はストア操作失敗を記録する。
func (c *Collector) RecordStoreFailure(operation string) {
	c.storeFailures.WithLabelValues(operation).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はAPIリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordRecordsPurged はクリーンアップで削除されたレコード数を記録する。
func (c *Collector) RecordRecordsPurged(count int64) {
	c.recordsPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
