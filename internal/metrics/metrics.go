// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// フェッチサイクルの結果ラベル。
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// スケジューラ、ビュー、HTTPクライアントから利用する。
type MetricsCollector interface {
	RecordAction(kind string)
	RecordFetchCycle(result string, duration time.Duration)
	RecordCycleStarted()
	RecordHTTPStatus(statusCode int)
	RecordStoriesReceived(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	actions         *prometheus.CounterVec
	fetchCycles     *prometheus.CounterVec
	fetchLatency    prometheus.Histogram
	inflightCycles  prometheus.Gauge
	httpStatus      *prometheus.CounterVec
	storiesReceived prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hnsearch_actions_dispatched_total",
			Help: "リデューサにディスパッチされたアクション数（種別ごと）",
		}, []string{"action"}),
		fetchCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hnsearch_fetch_cycles_total",
			Help: "完了したフェッチサイクル数（結果ごと）",
		}, []string{"result"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hnsearch_fetch_latency_seconds",
			Help:    "フェッチサイクルのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		inflightCycles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hnsearch_fetch_cycles_in_flight",
			Help: "未完了のフェッチサイクル数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hnsearch_upstream_http_status_total",
			Help: "検索APIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		storiesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hnsearch_stories_received_total",
			Help: "フェッチ成功時に受信したストーリーの合計数",
		}),
	}

	reg.MustRegister(
		c.actions,
		c.fetchCycles,
		c.fetchLatency,
		c.inflightCycles,
		c.httpStatus,
		c.storiesReceived,
	)

	return c
}

// RecordAction はディスパッチされたアクションを記録する。
func (c *Collector) RecordAction(kind string) {
	c.actions.WithLabelValues(kind).Inc()
}

// RecordCycleStarted はフェッチサイクルの開始を記録する。
func (c *Collector) RecordCycleStarted() {
	c.inflightCycles.Inc()
}

// RecordFetchCycle はフェッチサイクルの完了を記録する。
func (c *Collector) RecordFetchCycle(result string, duration time.Duration) {
	c.inflightCycles.Dec()
	c.fetchCycles.WithLabelValues(result).Inc()
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordStoriesReceived は受信したストーリー数を記録する。
func (c *Collector) RecordStoriesReceived(count int) {
	c.storiesReceived.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。CLIの単発実行とテストで使う。
type Nop struct{}

func (Nop) RecordAction(string)                    {}
func (Nop) RecordFetchCycle(string, time.Duration) {}
func (Nop) RecordCycleStarted()                    {}
func (Nop) RecordHTTPStatus(int)                   {}
func (Nop) RecordStoriesReceived(int)              {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
