package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestRecordDeletion(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDeletion("success", 20*time.Millisecond)
	c.RecordDeletion("success", 30*time.Millisecond)
	c.RecordDeletion("WRONG_PASSWORD", 5*time.Millisecond)

	mf := findMetric(t, reg, "account_lifecycle_account_deletions_total")
	counts := map[string]float64{}
	for _, m := range mf.GetMetric() {
		counts[labelValue(m, "outcome")] = m.GetCounter().GetValue()
	}
	if counts["success"] != 2 {
		t.Errorf("success = %v, want 2", counts["success"])
	}
	if counts["WRONG_PASSWORD"] != 1 {
		t.Errorf("WRONG_PASSWORD = %v, want 1", counts["WRONG_PASSWORD"])
	}

	hist := findMetric(t, reg, "account_lifecycle_account_deletion_duration_seconds")
	if got := hist.GetMetric()[0].GetHistogram().GetSampleCount(); got != 3 {
		t.Errorf("sample count = %d, want 3", got)
	}
}

func TestRecordStepFailureAndProfileOps(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStepFailure("account.delete.clearLocalStorage")
	c.RecordProfileOp("create", "success")
	c.RecordProfileOp("create", "failure")
	c.RecordLogout(false)
	c.RecordRateLimited("delete-account")

	steps := findMetric(t, reg, "account_lifecycle_account_deletion_step_failures_total")
	if got := labelValue(steps.GetMetric()[0], "step"); got != "account.delete.clearLocalStorage" {
		t.Errorf("unexpected step label %q", got)
	}

	ops := findMetric(t, reg, "account_lifecycle_profile_operations_total")
	if len(ops.GetMetric()) != 2 {
		t.Errorf("expected 2 profile series, got %d", len(ops.GetMetric()))
	}

	logouts := findMetric(t, reg, "account_lifecycle_logouts_total")
	if got := labelValue(logouts.GetMetric()[0], "result"); got != "failure" {
		t.Errorf("unexpected logout result %q", got)
	}

	limited := findMetric(t, reg, "account_lifecycle_rate_limited_requests_total")
	if got := limited.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("rate limited = %v, want 1", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordStepFailure("account.delete.deleteIdentity")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "account_lifecycle_account_deletion_step_failures_total") {
		t.Fatalf("expected step failure metric in output:\n%s", body)
	}
}

func TestNopDoesNotPanic(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordDeletion("success", time.Second)
	r.RecordStepFailure("x")
	r.RecordLogout(true)
	r.RecordProfileOp("get", "success")
	r.RecordRateLimited("x")
}
