// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 公開ページ閲覧の区分
const (
	VisibilityPublic = "public" // 訪問者による公開ページの閲覧
	VisibilityOwner  = "owner"  // 所有者自身の閲覧
	VisibilityHidden = "hidden" // 非公開・不存在で404になった閲覧
)

// トップからのリダイレクト先の区分
const (
	RedirectLogin      = "login"
	RedirectOnboarding = "onboarding"
	RedirectPage       = "page"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とハンドラーから利用する。
type MetricsCollector interface {
	RecordPageView(visibility string)
	RecordRedirect(target string)
	RecordHandleUpdate()
	RecordItemCreated(kind string)
	RecordOnboardingCompleted()
	RecordPageRender(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	pageViews           *prometheus.CounterVec
	redirects           *prometheus.CounterVec
	handleUpdates       prometheus.Counter
	itemsCreated        *prometheus.CounterVec
	onboardingCompleted prometheus.Counter
	pageRender          prometheus.Histogram
	httpStatus          *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		pageViews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkpage_page_views_total",
			Help: "公開ページの閲覧数（区分別）",
		}, []string{"visibility"}),
		redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkpage_redirects_total",
			Help: "ルートアクセス時のリダイレクト先別の件数",
		}, []string{"target"}),
		handleUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkpage_handle_updates_total",
			Help: "ハンドル変更の合計数",
		}),
		itemsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkpage_items_created_total",
			Help: "作成されたコンテンツアイテム数（種別別）",
		}, []string{"kind"}),
		onboardingCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkpage_onboarding_completed_total",
			Help: "初期設定を完了したユーザー数",
		}),
		pageRender: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "linkpage_page_render_seconds",
			Help:    "公開ページの組み立てから描画までの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkpage_http_responses_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.pageViews,
		c.redirects,
		c.handleUpdates,
		c.itemsCreated,
		c.onboardingCompleted,
		c.pageRender,
		c.httpStatus,
	)

	return c
}

// RecordPageView は公開ページの閲覧を記録する。
func (c *Collector) RecordPageView(visibility string) {
	c.pageViews.WithLabelValues(visibility).Inc()
}

// RecordRedirect はリダイレクト先を記録する。
func (c *Collector) RecordRedirect(target string) {
	c.redirects.WithLabelValues(target).Inc()
}

// RecordHandleUpdate はハンドル変更を記録する。
func (c *Collector) RecordHandleUpdate() {
	c.handleUpdates.Inc()
}

// RecordItemCreated はアイテム作成を記録する。
func (c *Collector) RecordItemCreated(kind string) {
	c.itemsCreated.WithLabelValues(kind).Inc()
}

// RecordOnboardingCompleted は初期設定完了を記録する。
func (c *Collector) RecordOnboardingCompleted() {
	c.onboardingCompleted.Inc()
}

// RecordPageRender は公開ページの描画時間を記録する。
func (c *Collector) RecordPageRender(duration time.Duration) {
	c.pageRender.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
