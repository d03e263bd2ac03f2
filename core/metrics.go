package core

import (
	"context"
	"strings"
)

const metricNamespace = "community"

// Operation outcomes carried in the status tag.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailure  = "failure"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// OperationCounterName is the counter incremented once per service call.
func OperationCounterName(operation string) string {
	return metricNamespace + "." + operation + ".total"
}

// OperationDurationName is the histogram observing service call latency.
func OperationDurationName(operation string) string {
	return metricNamespace + "." + operation + ".duration_ms"
}

// operationResource strips the leading verb, so "cast_vote" becomes "vote".
func operationResource(operation string) string {
	_, noun, ok := strings.Cut(operation, "_")
	if !ok || noun == "" {
		return operation
	}
	return noun
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
