package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCountersUseFirstLabelSet(t *testing.T) {
	recorder := NewRecorder(WithRegistry(prom.NewRegistry()))
	ctx := context.Background()

	recorder.IncCounter(ctx, "community.applications.submit.total", 1, map[string]string{"operation": "applications.submit", "status": "success"})
	recorder.IncCounter(ctx, "community.applications.submit.total", 2, map[string]string{"operation": "applications.submit", "status": "success", "role": "member"})

	entry := recorder.counters["community_applications_submit_total"]
	if entry == nil {
		t.Fatalf("expected sanitized counter name, got %v", recorder.counters)
	}
	got := testutil.ToFloat64(entry.vec.WithLabelValues("applications.submit", "success"))
	if got != 3 {
		t.Fatalf("expected counter 3, got %v", got)
	}
}

func TestRecorderHistogramAndHandler(t *testing.T) {
	recorder := NewRecorder(WithRegistry(prom.NewRegistry()))
	recorder.ObserveHistogram(context.Background(), "webhook_delivery_duration_seconds", 0.25, map[string]string{"status": "delivered"})

	if n := testutil.CollectAndCount(recorder.Registry(), "community_webhook_delivery_duration_seconds"); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}

	rec := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "community_webhook_delivery_duration_seconds_bucket") {
		t.Fatalf("expected histogram in exposition output")
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	recorder := NewRecorder(WithRegistry(prom.NewRegistry()))
	metrics := recorder.HTTPMetrics()
	handler := metrics.Middleware(func(*http.Request) string { return "/v1/users/{id}" })(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}),
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/users/abc", nil))

	got := testutil.ToFloat64(metrics.requests.WithLabelValues("GET", "/v1/users/{id}", "404"))
	if got != 1 {
		t.Fatalf("expected one 404 request, got %v", got)
	}
	if again := recorder.HTTPMetrics(); again.requests != metrics.requests {
		t.Fatalf("expected second HTTPMetrics call to reuse registered collectors")
	}
}
