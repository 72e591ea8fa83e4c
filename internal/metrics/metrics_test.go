package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定名・ラベルのメトリクスを収集結果から探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	m := findMetric(t, reg, name, labels)
	if m == nil {
		t.Fatalf("metric %s %v not found", name, labels)
	}
	return m.GetCounter().GetValue()
}

func TestNewCollector_ReturnsNonNil(t *testing.T) {
	if NewCollector(prometheus.NewRegistry()) == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestRecordPageView_CountsByVisibility(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPageView(VisibilityPublic)
	c.RecordPageView(VisibilityPublic)
	c.RecordPageView(VisibilityHidden)

	if got := counterValue(t, reg, "linkpage_page_views_total", map[string]string{"visibility": "public"}); got != 2 {
		t.Errorf("public views = %v, want 2", got)
	}
	if got := counterValue(t, reg, "linkpage_page_views_total", map[string]string{"visibility": "hidden"}); got != 1 {
		t.Errorf("hidden views = %v, want 1", got)
	}
}

func TestRecordRedirect_CountsByTarget(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRedirect("login")
	c.RecordRedirect("page")

	if got := counterValue(t, reg, "linkpage_redirects_total", map[string]string{"target": "login"}); got != 1 {
		t.Errorf("login redirects = %v, want 1", got)
	}
}

func TestRecordCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHandleUpdate()
	c.RecordOnboardingCompleted()
	c.RecordOnboardingCompleted()
	c.RecordItemCreated("memo")
	c.RecordHTTPStatus(404)

	if got := counterValue(t, reg, "linkpage_handle_updates_total", nil); got != 1 {
		t.Errorf("handle updates = %v, want 1", got)
	}
	if got := counterValue(t, reg, "linkpage_onboarding_completed_total", nil); got != 2 {
		t.Errorf("onboarding completed = %v, want 2", got)
	}
	if got := counterValue(t, reg, "linkpage_items_created_total", map[string]string{"kind": "memo"}); got != 1 {
		t.Errorf("memo items = %v, want 1", got)
	}
	if got := counterValue(t, reg, "linkpage_http_responses_total", map[string]string{"status_code": "404"}); got != 1 {
		t.Errorf("404 responses = %v, want 1", got)
	}
}

func TestRecordPageRender_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPageRender(150 * time.Millisecond)

	m := findMetric(t, reg, "linkpage_page_render_seconds", nil)
	if m == nil {
		t.Fatal("linkpage_page_render_seconds not found")
	}
	if got := m.GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
	if got := m.GetHistogram().GetSampleSum(); got < 0.149 || got > 0.151 {
		t.Errorf("sample sum = %v, want ~0.15", got)
	}
}

func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	var _ MetricsCollector = NewCollector(prometheus.NewRegistry())
}

// 同一レジストリへの二重登録はpanicになるため、レジストリごとに独立していることを確認する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	_ = NewCollector(reg2)

	c1.RecordHandleUpdate()

	if m := findMetric(t, reg2, "linkpage_handle_updates_total", nil); m != nil && m.GetCounter().GetValue() != 0 {
		t.Errorf("reg2 should not observe reg1 increments")
	}
}
