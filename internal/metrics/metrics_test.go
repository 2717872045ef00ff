package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsExposure(t *testing.T) {
	var o Observer
	o.ProviderResult("wield", false)
	o.FallbackInvoked()
	o.EngagementChecked(true)
	o.EarningsFetched(errors.New("boom"))
	o.RenderFailed()
	IncAPIRetry("/test")
	IncCardReject("signature")
	IncCommandRun("serve")
	IncCommandError("serve")
	ObserveRequest("check", time.Now().Add(-1500*time.Millisecond))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, m := range []string{
		"earnframe_provider_requests_total",
		"earnframe_fallback_total",
		"earnframe_engagement_checks_total",
		"earnframe_earnings_fetch_total",
		"earnframe_render_errors_total",
		"earnframe_card_rejects_total",
		"earnframe_api_retries_total",
		"earnframe_request_duration_seconds",
		"earnframe_command_runs_total",
	} {
		if !strings.Contains(body, m) {
			t.Fatalf("expected metric %s in body", m)
		}
	}
}

func TestFallbackCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(Fallbacks)
	Observer{}.FallbackInvoked()
	if got := testutil.ToFloat64(Fallbacks); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}
}
