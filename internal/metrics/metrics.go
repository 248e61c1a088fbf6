// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// workflowやワーカーから利用する。
type MetricsCollector interface {
	RecordPostCreated()
	RecordStatusChange(status string)
	RecordReaction(target, action string)
	RecordCommentAdded()
	RecordPostView()
	RecordNotificationEmitted(notificationType string)
	RecordNotificationFailure(notificationType string)
	RecordDraftLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	postsCreated         prometheus.Counter
	statusChanges        *prometheus.CounterVec
	reactions            *prometheus.CounterVec
	commentsAdded        prometheus.Counter
	postViews            prometheus.Counter
	notificationsEmitted *prometheus.CounterVec
	notificationFailures *prometheus.CounterVec
	draftLatency         prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		postsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogman_posts_created_total",
			Help: "作成された投稿の合計数",
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_post_status_changes_total",
			Help: "変更後ステータス別の投稿ステータス変更数",
		}, []string{"status"}),
		reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_reactions_total",
			Help: "対象・種別ごとのリアクション数",
		}, []string{"target", "action"}),
		commentsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogman_comments_added_total",
			Help: "追加されたコメントの合計数",
		}),
		postViews: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogman_post_views_total",
			Help: "投稿閲覧数の加算回数",
		}),
		notificationsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_notifications_emitted_total",
			Help: "種別ごとの通知作成数",
		}, []string{"type"}),
		notificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_notification_failures_total",
			Help: "種別ごとの通知作成失敗数",
		}, []string{"type"}),
		draftLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blogman_draft_generation_duration_seconds",
			Help:    "下書き生成のレイテンシ（秒）",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40},
		}),
	}

	reg.MustRegister(
		c.postsCreated,
		c.statusChanges,
		c.reactions,
		c.commentsAdded,
		c.postViews,
		c.notificationsEmitted,
		c.notificationFailures,
		c.draftLatency,
	)

	return c
}

// RecordPostCreated は投稿作成を記録する。
func (c *Collector) RecordPostCreated() {
	c.postsCreated.Inc()
}

// RecordStatusChange はステータス変更を記録する。
func (c *Collector) RecordStatusChange(status string) {
	c.statusChanges.WithLabelValues(status).Inc()
}

// RecordReaction はリアクションを記録する。
func (c *Collector) RecordReaction(target, action string) {
	c.reactions.WithLabelValues(target, action).Inc()
}

// RecordCommentAdded はコメント追加を記録する。
func (c *Collector) RecordCommentAdded() {
	c.commentsAdded.Inc()
}

// RecordPostView は閲覧数の加算を記録する。
func (c *Collector) RecordPostView() {
	c.postViews.Inc()
}

// RecordNotificationEmitted は通知作成を記録する。
func (c *Collector) RecordNotificationEmitted(notificationType string) {
	c.notificationsEmitted.WithLabelValues(notificationType).Inc()
}

// RecordNotificationFailure は通知作成の失敗を記録する。
func (c *Collector) RecordNotificationFailure(notificationType string) {
	c.notificationFailures.WithLabelValues(notificationType).Inc()
}

// RecordDraftLatency は下書き生成のレイテンシを記録する。
func (c *Collector) RecordDraftLatency(duration time.Duration) {
	c.draftLatency.Observe(duration.Seconds())
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type NopCollector struct{}

func (NopCollector) RecordPostCreated()               {}
func (NopCollector) RecordStatusChange(string)        {}
func (NopCollector) RecordReaction(string, string)    {}
func (NopCollector) RecordCommentAdded()              {}
func (NopCollector) RecordPostView()                  {}
func (NopCollector) RecordNotificationEmitted(string) {}
func (NopCollector) RecordNotificationFailure(string) {}
func (NopCollector) RecordDraftLatency(time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
