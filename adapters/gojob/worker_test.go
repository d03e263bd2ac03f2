package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-community/core"
	"github.com/goliatone/go-community/webhooks"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

type stubJobHandler struct {
	calls int
	errs  []error
	last  *core.JobExecutionMessage
}

func (h *stubJobHandler) HandleJob(_ context.Context, msg *core.JobExecutionMessage) error {
	h.last = msg
	h.calls++
	if len(h.errs) == 0 {
		return nil
	}
	err := h.errs[0]
	h.errs = h.errs[1:]
	return err
}

type countingHook struct {
	starts, successes, failures, retries int
}

func (h *countingHook) OnStart(context.Context, core.JobWorkerEvent)   { h.starts++ }
func (h *countingHook) OnSuccess(context.Context, core.JobWorkerEvent) { h.successes++ }
func (h *countingHook) OnFailure(context.Context, core.JobWorkerEvent) { h.failures++ }
func (h *countingHook) OnRetry(context.Context, core.JobWorkerEvent)   { h.retries++ }

func newWorkerFixture(t *testing.T, msg *job.ExecutionMessage, handler JobHandler, opts ...WorkerOption) (*DeliveryWorker, *stubQueueDelivery) {
	t.Helper()
	raw := &stubQueueDelivery{msg: msg}
	policy := RetryPolicy{MaxAttempts: 2, MaxDelay: time.Minute, DeadLetterOnMax: true}
	dequeuer := NewDequeuerAdapter(&stubQueueDequeuer{delivery: raw}, policy)
	opts = append([]WorkerOption{
		WithWorkerRetryPolicy(policy),
		WithWorkerBackoff(webhooks.ExponentialRetryPolicy{Initial: time.Second, Max: 10 * time.Second}),
	}, opts...)
	worker, err := NewDeliveryWorker(dequeuer, handler, opts...)
	if err != nil {
		t.Fatalf("new delivery worker: %v", err)
	}
	return worker, raw
}

func TestDeliveryWorkerAcksSuccessfulJob(t *testing.T) {
	handler := &stubJobHandler{}
	hook := &countingHook{}
	worker, raw := newWorkerFixture(t, &job.ExecutionMessage{
		JobID:          JobIDWebhookDeliver,
		Parameters:     map[string]any{"delivery_id": "dlv_ok"},
		IdempotencyKey: "dlv_ok",
	}, handler, WithWorkerHook(hook))

	if err := worker.ProcessOne(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !raw.acked {
		t.Fatalf("expected successful job to be acked")
	}
	if handler.last == nil || handler.last.Parameters["delivery_id"] != "dlv_ok" {
		t.Fatalf("expected handler to receive delivery id, got %#v", handler.last)
	}
	if hook.starts != 1 || hook.successes != 1 {
		t.Fatalf("expected start and success hooks, got %+v", hook)
	}
}

func TestDeliveryWorkerRequeuesThenDeadLetters(t *testing.T) {
	handler := &stubJobHandler{errs: []error{errors.New("503"), errors.New("503")}}
	hook := &countingHook{}
	worker, raw := newWorkerFixture(t, &job.ExecutionMessage{
		JobID:          JobIDWebhookDeliver,
		Parameters:     map[string]any{"delivery_id": "dlv_retry"},
		IdempotencyKey: "dlv_retry",
	}, handler, WithWorkerHook(hook))

	if err := worker.ProcessOne(context.Background()); err != nil {
		t.Fatalf("first process: %v", err)
	}
	if raw.nackOpts.Disposition != queue.NackDispositionRetry {
		t.Fatalf("expected retry on first failure, got %+v", raw.nackOpts)
	}
	if raw.nackOpts.Delay != time.Second {
		t.Fatalf("expected 1s backoff on first failure, got %s", raw.nackOpts.Delay)
	}

	if err := worker.ProcessOne(context.Background()); err != nil {
		t.Fatalf("second process: %v", err)
	}
	if raw.nackOpts.Disposition != queue.NackDispositionDeadLetter {
		t.Fatalf("expected dead letter at max attempts, got %+v", raw.nackOpts)
	}
	if raw.nackOpts.Reason != "503" {
		t.Fatalf("expected handler error as reason, got %q", raw.nackOpts.Reason)
	}
	if hook.retries != 1 || hook.failures != 1 {
		t.Fatalf("expected one retry and one failure hook, got %+v", hook)
	}
	if len(worker.attempts) != 0 {
		t.Fatalf("expected attempt tracking to be cleared, got %v", worker.attempts)
	}
}

func TestDeliveryWorkerDeadLettersUnknownJobs(t *testing.T) {
	handler := &stubJobHandler{}
	worker, raw := newWorkerFixture(t, &job.ExecutionMessage{JobID: "community.unknown"}, handler)

	if err := worker.ProcessOne(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if handler.calls != 0 {
		t.Fatalf("expected handler to be skipped for unknown job")
	}
	if raw.nackOpts.Disposition != queue.NackDispositionDeadLetter {
		t.Fatalf("expected unknown job to be dead lettered, got %+v", raw.nackOpts)
	}
}

func TestNewDeliveryWorkerRequiresCollaborators(t *testing.T) {
	if _, err := NewDeliveryWorker(nil, &stubJobHandler{}); err == nil {
		t.Fatalf("expected error without dequeuer")
	}
	dequeuer := NewDequeuerAdapter(&stubQueueDequeuer{}, RetryPolicy{})
	if _, err := NewDeliveryWorker(dequeuer, nil); err == nil {
		t.Fatalf("expected error without handler")
	}
}

func TestDeliveryWorkerRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	worker, _ := newWorkerFixture(t, &job.ExecutionMessage{JobID: JobIDWebhookDeliver}, &stubJobHandler{})
	if err := worker.Run(ctx); err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
}
