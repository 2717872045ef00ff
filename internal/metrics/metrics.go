package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProviderRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "earnframe_provider_requests_total",
		Help: "Reaction provider calls by outcome",
	}, []string{"provider", "outcome"})
	Fallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "earnframe_fallback_total",
		Help: "Engagement checks that fell back to the secondary provider",
	})
	EngagementChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "earnframe_engagement_checks_total",
		Help: "Engagement checks by result",
	}, []string{"result"})
	EarningsFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "earnframe_earnings_fetch_total",
		Help: "Earnings queries by outcome",
	}, []string{"outcome"})
	RenderErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "earnframe_render_errors_total",
		Help: "Frames replaced by the render error card",
	})
	CardRejects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "earnframe_card_rejects_total",
		Help: "Image requests whose card parameter was refused",
	}, []string{"reason"})
	APIRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "earnframe_api_retries_total",
		Help: "Total API retry attempts",
	}, []string{"endpoint"})
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "earnframe_request_duration_seconds",
		Help:    "Frame request duration seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "earnframe_command_runs_total",
		Help: "CLI command runs",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "earnframe_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(ProviderRequests, Fallbacks, EngagementChecks, EarningsFetches,
		RenderErrors, CardRejects, APIRetries, RequestDuration, CommandRuns, CommandErrors)
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// ObserveRequest records a request duration for route.
func ObserveRequest(route string, start time.Time) {
	RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

// IncAPIRetry increments the retry counter for an endpoint.
func IncAPIRetry(endpoint string) { APIRetries.WithLabelValues(endpoint).Inc() }

// IncCardReject counts an image request refused for reason.
func IncCardReject(reason string) { CardRejects.WithLabelValues(reason).Inc() }

func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }

// Observer feeds the collectors above. The zero value is ready to use.
type Observer struct{}

func (Observer) ProviderResult(provider string, ok bool) {
	ProviderRequests.WithLabelValues(provider, outcome(ok)).Inc()
}

func (Observer) FallbackInvoked() { Fallbacks.Inc() }

func (Observer) EngagementChecked(engaged bool) {
	r := "not_engaged"
	if engaged {
		r = "engaged"
	}
	EngagementChecks.WithLabelValues(r).Inc()
}

func (Observer) EarningsFetched(err error) {
	EarningsFetches.WithLabelValues(outcome(err == nil)).Inc()
}

func (Observer) RenderFailed() { RenderErrors.Inc() }

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
