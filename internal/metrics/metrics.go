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
// 同期worker（refresh.MetricsRecorder）、条目の再構築（subject.FoldRecorder）、
// HTTPミドルウェアから利用する。
type Collector struct {
	refreshTotal   *prometheus.CounterVec
	refreshLatency prometheus.Histogram
	retryRounds    prometheus.Counter
	runTotal       prometheus.Counter
	runDuration    prometheus.Histogram
	lastRun        *prometheus.GaugeVec
	foldTotal      *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	httpLatency    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bgmx_refresh_total",
			Help: "条目更新の合計数（result=success|failure）",
		}, []string{"result"}),
		refreshLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bgmx_refresh_latency_seconds",
			Help:    "条目1件の更新にかかった時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		retryRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bgmx_refresh_retry_rounds_total",
			Help: "リトライラウンドの合計数",
		}),
		runTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bgmx_sync_runs_total",
			Help: "同期処理の実行回数",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bgmx_sync_run_duration_seconds",
			Help:    "同期処理1回の所要時間（秒）",
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600},
		}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bgmx_sync_last_run_subjects",
			Help: "直近の同期処理の結果件数（kind=updated|unknown|failed）",
		}, []string{"kind"}),
		foldTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bgmx_revision_fold_total",
			Help: "修正履歴の畳み込み回数（result=complete|partial）",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bgmx_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bgmx_http_latency_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.refreshTotal,
		c.refreshLatency,
		c.retryRounds,
		c.runTotal,
		c.runDuration,
		c.lastRun,
		c.foldTotal,
		c.httpStatus,
		c.httpLatency,
	)

	return c
}

// RecordRefresh は条目1件の更新結果とレイテンシを記録する。
func (c *Collector) RecordRefresh(success bool, d time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.refreshTotal.WithLabelValues(result).Inc()
	c.refreshLatency.Observe(d.Seconds())
}

// RecordRetryRound はリトライラウンドの開始を記録する。
func (c *Collector) RecordRetryRound() {
	c.retryRounds.Inc()
}

// RecordRun は同期処理1回の集計結果を記録する。
func (c *Collector) RecordRun(updated, unknown, failed int, d time.Duration) {
	c.runTotal.Inc()
	c.runDuration.Observe(d.Seconds())
	c.lastRun.WithLabelValues("updated").Set(float64(updated))
	c.lastRun.WithLabelValues("unknown").Set(float64(unknown))
	c.lastRun.WithLabelValues("failed").Set(float64(failed))
}

// RecordFold は修正履歴の畳み込みが最後まで適用できたかを記録する。
func (c *Collector) RecordFold(ok bool) {
	result := "complete"
	if !ok {
		result = "partial"
	}
	c.foldTotal.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordHTTPLatency はHTTPリクエストの処理時間を記録する。
func (c *Collector) RecordHTTPLatency(d time.Duration) {
	c.httpLatency.Observe(d.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
