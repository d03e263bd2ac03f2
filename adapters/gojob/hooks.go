package gojob

import (
	"context"
	"fmt"

	"github.com/goliatone/go-community/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue/worker"
)

// HookBridge fans DeliveryWorker lifecycle events out to go-job worker hooks.
type HookBridge struct {
	hooks []worker.Hook
}

func NewHookBridge(hooks ...worker.Hook) *HookBridge {
	bridge := &HookBridge{}
	for _, hook := range hooks {
		if hook != nil {
			bridge.hooks = append(bridge.hooks, hook)
		}
	}
	return bridge
}

func (b *HookBridge) OnStart(ctx context.Context, event core.JobWorkerEvent) {
	b.each(event, func(hook worker.Hook, mapped worker.Event) { hook.OnStart(ctx, mapped) })
}

func (b *HookBridge) OnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	b.each(event, func(hook worker.Hook, mapped worker.Event) { hook.OnSuccess(ctx, mapped) })
}

func (b *HookBridge) OnFailure(ctx context.Context, event core.JobWorkerEvent) {
	b.each(event, func(hook worker.Hook, mapped worker.Event) { hook.OnFailure(ctx, mapped) })
}

func (b *HookBridge) OnRetry(ctx context.Context, event core.JobWorkerEvent) {
	b.each(event, func(hook worker.Hook, mapped worker.Event) { hook.OnRetry(ctx, mapped) })
}

func (b *HookBridge) each(event core.JobWorkerEvent, fn func(worker.Hook, worker.Event)) {
	if b == nil || len(b.hooks) == 0 {
		return
	}
	mapped := toWorkerEvent(event)
	for _, hook := range b.hooks {
		fn(hook, mapped)
	}
}

func toWorkerEvent(event core.JobWorkerEvent) worker.Event {
	return worker.Event{
		Message:   ToExecutionMessage(event.Message),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
}

// LoggingHook reports retries at warn and exhausted deliveries at error.
func LoggingHook(logger job.Logger) worker.Hook {
	if logger == nil {
		return nil
	}
	return worker.HookFuncs{
		OnSuccessFunc: func(ctx context.Context, event worker.Event) {
			logger.WithContext(ctx).Debug("webhook job delivered", eventArgs(event)...)
		},
		OnRetryFunc: func(ctx context.Context, event worker.Event) {
			args := append(eventArgs(event), "retry_in", event.Delay.String())
			logger.WithContext(ctx).Warn("webhook job retrying", args...)
		},
		OnFailureFunc: func(ctx context.Context, event worker.Event) {
			logger.WithContext(ctx).Error("webhook job exhausted", eventArgs(event)...)
		},
	}
}

const (
	metricJobTotal    = "community.webhook_job.total"
	metricJobDuration = "community.webhook_job.duration_ms"
)

// MetricsHook counts job outcomes and observes handler latency.
func MetricsHook(recorder core.MetricsRecorder) worker.Hook {
	if recorder == nil {
		return nil
	}
	observe := func(ctx context.Context, event worker.Event, outcome string) {
		tags := map[string]string{"job_id": jobID(event), "status": outcome}
		recorder.IncCounter(ctx, metricJobTotal, 1, tags)
		recorder.ObserveHistogram(ctx, metricJobDuration, float64(event.Duration.Milliseconds()), tags)
	}
	return worker.HookFuncs{
		OnSuccessFunc: func(ctx context.Context, event worker.Event) { observe(ctx, event, "delivered") },
		OnRetryFunc:   func(ctx context.Context, event worker.Event) { observe(ctx, event, "retrying") },
		OnFailureFunc: func(ctx context.Context, event worker.Event) { observe(ctx, event, "exhausted") },
	}
}

func eventArgs(event worker.Event) []any {
	args := []any{"job_id", jobID(event), "attempt", event.Attempt, "duration_ms", event.Duration.Milliseconds()}
	if event.Message != nil {
		if id, ok := event.Message.Parameters["delivery_id"]; ok {
			args = append(args, "delivery_id", fmt.Sprint(id))
		}
	}
	if event.Err != nil {
		args = append(args, "error", event.Err.Error())
	}
	return args
}

func jobID(event worker.Event) string {
	if event.Message == nil {
		return "unknown"
	}
	return event.Message.JobID
}

var _ core.JobWorkerHook = (*HookBridge)(nil)
