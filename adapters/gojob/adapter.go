package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-community/core"
	"github.com/goliatone/go-community/webhooks"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

// JobIDWebhookDeliver is the only job the community worker consumes.
const JobIDWebhookDeliver = webhooks.JobDeliver

// RetryPolicy bounds how often a delivery job goes back onto the queue.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt clamps the delay and decides between retrying, dead
// lettering and failing. Once attempt reaches MaxAttempts the job is never
// requeued again.
func (p RetryPolicy) NormalizeAttempt(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	exhausted := p.MaxAttempts > 0 && attempt >= p.MaxAttempts
	switch {
	case out.DeadLetter:
		out.Requeue = false
	case exhausted:
		out.Requeue = false
		out.DeadLetter = p.DeadLetterOnMax
	default:
		out.Requeue = true
	}
	if !out.Requeue {
		out.Delay = 0
	}
	return out
}

// ToExecutionMessage maps a community job message to go-job.
func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

// FromExecutionMessage maps a go-job message into the community contract.
func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

// ToNackOptions picks the go-job disposition for a community nack. Dead
// lettering wins over requeueing; a nack that asks for neither is failed.
func ToNackOptions(opts core.JobNackOptions) queue.NackOptions {
	disposition := queue.NackDispositionFailed
	switch {
	case opts.DeadLetter:
		disposition = queue.NackDispositionDeadLetter
	case opts.Requeue:
		disposition = queue.NackDispositionRetry
	}
	out := queue.NackOptions{Disposition: disposition, Reason: opts.Reason}
	if disposition == queue.NackDispositionRetry {
		out.Delay = opts.Delay
	}
	return out
}

// EnqueuerAdapter publishes webhook delivery jobs onto a go-job queue.
type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	if _, err := a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg)); err != nil {
		return fmt.Errorf("gojob: enqueue %s: %w", msg.JobID, err)
	}
	return nil
}

type queuedDelivery struct {
	raw    queue.Delivery
	policy RetryPolicy
}

func (d *queuedDelivery) Message() *core.JobExecutionMessage {
	return FromExecutionMessage(d.raw.Message())
}

func (d *queuedDelivery) Ack(ctx context.Context) error {
	return d.raw.Ack(ctx)
}

func (d *queuedDelivery) Nack(ctx context.Context, opts core.JobNackOptions) error {
	return d.NackForAttempt(ctx, opts, 0)
}

// NackForAttempt bounds opts by the retry policy before nacking.
func (d *queuedDelivery) NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error {
	return d.raw.Nack(ctx, ToNackOptions(d.policy.NormalizeAttempt(opts, attempt)))
}

// DequeuerAdapter pulls go-job deliveries and applies RetryPolicy to every nack.
type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	raw, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return &queuedDelivery{raw: raw, policy: a.policy}, nil
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ core.JobEnqueuer = (*EnqueuerAdapter)(nil)
	_ core.JobDelivery = (*queuedDelivery)(nil)
	_ core.JobDequeuer = (*DequeuerAdapter)(nil)
	_ attemptNacker    = (*queuedDelivery)(nil)
)
