package gojob

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-community/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

func TestMessageMappingRoundTrip(t *testing.T) {
	original := &core.JobExecutionMessage{
		JobID:          JobIDWebhookDeliver,
		ScriptPath:     "webhooks/deliver",
		Parameters:     map[string]any{"delivery_id": "dlv_1"},
		IdempotencyKey: "dlv_1",
		DedupPolicy:    "drop",
	}

	converted := ToExecutionMessage(original)
	if converted == nil {
		t.Fatalf("expected converted message")
	}
	roundTrip := FromExecutionMessage(converted)
	if roundTrip.JobID != original.JobID {
		t.Fatalf("expected job id %q, got %q", original.JobID, roundTrip.JobID)
	}
	if roundTrip.ScriptPath != original.ScriptPath {
		t.Fatalf("expected script path %q, got %q", original.ScriptPath, roundTrip.ScriptPath)
	}
	if roundTrip.IdempotencyKey != original.IdempotencyKey {
		t.Fatalf("expected idempotency key %q, got %q", original.IdempotencyKey, roundTrip.IdempotencyKey)
	}
	if roundTrip.DedupPolicy != original.DedupPolicy {
		t.Fatalf("expected dedup policy %q, got %q", original.DedupPolicy, roundTrip.DedupPolicy)
	}
	if roundTrip.Parameters["delivery_id"] != "dlv_1" {
		t.Fatalf("expected parameters to survive mapping")
	}
}

func TestEnqueueAndDequeueAdapters(t *testing.T) {
	ctx := context.Background()
	enqueuer := &stubQueueEnqueuer{}
	enqueueAdapter := NewEnqueuerAdapter(enqueuer)

	msg := &core.JobExecutionMessage{
		JobID:          JobIDWebhookDeliver,
		Parameters:     map[string]any{"delivery_id": "dlv_2"},
		IdempotencyKey: "dlv_2",
		DedupPolicy:    "merge",
	}
	if err := enqueueAdapter.Enqueue(ctx, msg); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if enqueuer.last == nil || enqueuer.last.JobID != JobIDWebhookDeliver {
		t.Fatalf("expected mapped go-job message")
	}

	dequeuer := &stubQueueDequeuer{delivery: &stubQueueDelivery{msg: enqueuer.last}}
	dequeueAdapter := NewDequeuerAdapter(dequeuer, RetryPolicy{})
	delivery, err := dequeueAdapter.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	got := delivery.Message()
	if got == nil || got.JobID != JobIDWebhookDeliver {
		t.Fatalf("expected mapped core message")
	}
	if err := delivery.Ack(ctx); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if !dequeuer.delivery.(*stubQueueDelivery).acked {
		t.Fatalf("expected ack on underlying delivery")
	}
}

func TestNackRetryPolicyBoundaries(t *testing.T) {
	ctx := context.Background()
	rawDelivery := &stubQueueDelivery{
		msg: &job.ExecutionMessage{
			JobID:      JobIDWebhookDeliver,
			Parameters: map[string]any{"delivery_id": "dlv_3"},
		},
	}
	dequeuer := NewDequeuerAdapter(&stubQueueDequeuer{delivery: rawDelivery}, RetryPolicy{
		MaxAttempts:     3,
		MaxDelay:        10 * time.Second,
		DeadLetterOnMax: true,
	})
	delivery, err := dequeuer.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	nacker := delivery.(attemptNacker)

	if err := nacker.NackForAttempt(ctx, core.JobNackOptions{
		Delay:   30 * time.Second,
		Requeue: true,
		Reason:  "transient",
	}, 1); err != nil {
		t.Fatalf("nack attempt 1: %v", err)
	}
	if rawDelivery.nackOpts.Disposition != queue.NackDispositionRetry {
		t.Fatalf("expected retry before max attempts, got %q", rawDelivery.nackOpts.Disposition)
	}
	if rawDelivery.nackOpts.Delay != 10*time.Second {
		t.Fatalf("expected delay to be bounded, got %s", rawDelivery.nackOpts.Delay)
	}

	if err := nacker.NackForAttempt(ctx, core.JobNackOptions{
		Delay:   time.Second,
		Requeue: true,
		Reason:  "still failing",
	}, 3); err != nil {
		t.Fatalf("nack max attempt: %v", err)
	}
	if rawDelivery.nackOpts.Disposition != queue.NackDispositionDeadLetter {
		t.Fatalf("expected dead letter on max attempts, got %q", rawDelivery.nackOpts.Disposition)
	}
	if rawDelivery.nackOpts.Reason != "still failing" {
		t.Fatalf("expected reason to be forwarded, got %q", rawDelivery.nackOpts.Reason)
	}
}

func TestRetryPolicyFailsExhaustedJobsWithoutDeadLetter(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2}

	retry := policy.NormalizeAttempt(core.JobNackOptions{Delay: time.Second}, 1)
	if !retry.Requeue || retry.DeadLetter {
		t.Fatalf("expected requeue below the limit, got %+v", retry)
	}

	exhausted := policy.NormalizeAttempt(core.JobNackOptions{Delay: time.Second, Requeue: true}, 2)
	if exhausted.Requeue || exhausted.DeadLetter || exhausted.Delay != 0 {
		t.Fatalf("expected plain failure at the limit, got %+v", exhausted)
	}
	if got := ToNackOptions(exhausted).Disposition; got != queue.NackDispositionFailed {
		t.Fatalf("expected failed disposition, got %q", got)
	}
}

func TestToNackOptionsDispositions(t *testing.T) {
	cases := []struct {
		name string
		opts core.JobNackOptions
		want queue.NackDisposition
	}{
		{name: "retry", opts: core.JobNackOptions{Requeue: true, Delay: time.Second}, want: queue.NackDispositionRetry},
		{name: "dead letter wins", opts: core.JobNackOptions{Requeue: true, DeadLetter: true}, want: queue.NackDispositionDeadLetter},
		{name: "neither", opts: core.JobNackOptions{}, want: queue.NackDispositionFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToNackOptions(tc.opts)
			if got.Disposition != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got.Disposition)
			}
			if tc.want != queue.NackDispositionRetry && got.Delay != 0 {
				t.Fatalf("expected no delay for terminal nack, got %s", got.Delay)
			}
		})
	}
}

func TestEnqueuerAdapterWrapsQueueErrors(t *testing.T) {
	adapter := NewEnqueuerAdapter(&stubQueueEnqueuer{err: errors.New("queue full")})
	err := adapter.Enqueue(context.Background(), &core.JobExecutionMessage{JobID: JobIDWebhookDeliver})
	if err == nil || !strings.Contains(err.Error(), "queue full") {
		t.Fatalf("expected wrapped queue error, got %v", err)
	}
	if err := NewEnqueuerAdapter(nil).Enqueue(context.Background(), &core.JobExecutionMessage{}); err == nil {
		t.Fatalf("expected error without enqueuer")
	}
}

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
	err  error
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	if s.err != nil {
		return queue.EnqueueReceipt{}, s.err
	}
	s.last = msg
	return queue.EnqueueReceipt{}, nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nackOpts = opts
	return nil
}
