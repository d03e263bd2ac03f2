package gojob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-community/core"
	"github.com/goliatone/go-community/webhooks"
	glog "github.com/goliatone/go-logger/glog"
)

// JobHandler executes one queued message. webhooks.Dispatcher implements it.
type JobHandler interface {
	HandleJob(ctx context.Context, msg *core.JobExecutionMessage) error
}

type attemptNacker interface {
	NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error
}

// DeliveryWorker pulls webhook delivery jobs and acks or nacks them with a
// bounded retry policy. Attempt counts are tracked per idempotency key for the
// lifetime of the worker.
type DeliveryWorker struct {
	dequeuer core.JobDequeuer
	handler  JobHandler
	policy   RetryPolicy
	backoff  webhooks.RetryPolicy
	hook     core.JobWorkerHook
	logger   core.Logger
	now      func() time.Time
	idle     time.Duration

	mu       sync.Mutex
	attempts map[string]int
}

type WorkerOption func(*DeliveryWorker)

func WithWorkerRetryPolicy(policy RetryPolicy) WorkerOption {
	return func(w *DeliveryWorker) {
		w.policy = policy
	}
}

func WithWorkerBackoff(backoff webhooks.RetryPolicy) WorkerOption {
	return func(w *DeliveryWorker) {
		if backoff != nil {
			w.backoff = backoff
		}
	}
}

func WithWorkerHook(hook core.JobWorkerHook) WorkerOption {
	return func(w *DeliveryWorker) {
		w.hook = hook
	}
}

func WithWorkerLogger(logger core.Logger) WorkerOption {
	return func(w *DeliveryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(w *DeliveryWorker) {
		if now != nil {
			w.now = now
		}
	}
}

// WithIdleDelay sets how long Run sleeps after a failed dequeue.
func WithIdleDelay(delay time.Duration) WorkerOption {
	return func(w *DeliveryWorker) {
		if delay > 0 {
			w.idle = delay
		}
	}
}

func NewDeliveryWorker(dequeuer core.JobDequeuer, handler JobHandler, opts ...WorkerOption) (*DeliveryWorker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("gojob: job handler is required")
	}
	w := &DeliveryWorker{
		dequeuer: dequeuer,
		handler:  handler,
		policy:   RetryPolicy{MaxAttempts: 8, MaxDelay: 5 * time.Minute, DeadLetterOnMax: true},
		backoff:  webhooks.ExponentialRetryPolicy{},
		logger:   glog.Nop(),
		now:      func() time.Time { return time.Now().UTC() },
		idle:     time.Second,
		attempts: map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// ProcessOne dequeues and handles a single job.
func (w *DeliveryWorker) ProcessOne(ctx context.Context) error {
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}
	msg := delivery.Message()
	if msg == nil {
		return delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: "empty message"})
	}
	if msg.JobID != JobIDWebhookDeliver {
		return delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     "unsupported job " + msg.JobID,
		})
	}

	key := attemptKey(msg)
	attempt := w.nextAttempt(key)
	event := core.JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: w.now()}
	w.onStart(ctx, event)

	handleErr := w.handler.HandleJob(ctx, msg)
	event.Duration = w.now().Sub(event.StartedAt)
	if handleErr == nil {
		w.forget(key)
		w.onSuccess(ctx, event)
		return delivery.Ack(ctx)
	}

	event.Err = handleErr
	opts := core.JobNackOptions{
		Delay:   w.backoff.NextDelay(attempt),
		Requeue: true,
		Reason:  handleErr.Error(),
	}
	event.Delay = opts.Delay
	if w.policy.MaxAttempts > 0 && attempt >= w.policy.MaxAttempts {
		w.forget(key)
		w.onFailure(ctx, event)
	} else {
		w.onRetry(ctx, event)
	}
	w.logger.WithContext(ctx).Debug("webhook job failed",
		"job_id", msg.JobID,
		"key", key,
		"attempt", attempt,
		"error", handleErr.Error(),
	)

	if nacker, ok := delivery.(attemptNacker); ok {
		return nacker.NackForAttempt(ctx, opts, attempt)
	}
	return delivery.Nack(ctx, w.policy.NormalizeAttempt(opts, attempt))
}

// Run processes jobs until ctx is cancelled.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := w.ProcessOne(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			w.logger.WithContext(ctx).Error("webhook worker dequeue failed", "error", err.Error())
			timer := time.NewTimer(w.idle)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

func (w *DeliveryWorker) nextAttempt(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *DeliveryWorker) forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, key)
}

func (w *DeliveryWorker) onStart(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}
}

func (w *DeliveryWorker) onSuccess(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnSuccess(ctx, event)
	}
}

func (w *DeliveryWorker) onFailure(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnFailure(ctx, event)
	}
}

func (w *DeliveryWorker) onRetry(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnRetry(ctx, event)
	}
}

func attemptKey(msg *core.JobExecutionMessage) string {
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return fmt.Sprint(msg.Parameters["delivery_id"])
}

var _ JobHandler = (*webhooks.Dispatcher)(nil)
