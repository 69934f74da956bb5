package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRecordPushSend は結果ラベルごとに加算されることを検証する。
// グローバルなカウンタを使うため並列にしない。
func TestRecordPushSend(t *testing.T) {
	before := testutil.ToFloat64(PushSends.WithLabelValues(ResultPruned))
	RecordPushSend(ResultPruned)
	RecordPushSend(ResultPruned)

	if got := testutil.ToFloat64(PushSends.WithLabelValues(ResultPruned)) - before; got != 2 {
		t.Errorf("pruned の増分 = %v, want 2", got)
	}
}

// TestHistograms は観測値が記録されることを検証する。
func TestHistograms(t *testing.T) {
	RecordDispatch(20 * time.Millisecond)
	RecordHTTPRequestDuration("GET", "/api/health", "200", time.Millisecond)

	if n := testutil.CollectAndCount(DispatchDuration); n != 1 {
		t.Errorf("DispatchDurationの系列数 = %d, want 1", n)
	}
	if n := testutil.CollectAndCount(HTTPRequestDuration, "pushrelay_http_request_duration_seconds"); n < 1 {
		t.Errorf("HTTPRequestDurationの系列数 = %d, want >= 1", n)
	}
}
