package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/goliatone/go-community/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

const (
	// JobDeliver is the go-job id used when deliveries are queued.
	JobDeliver = "community.webhooks.deliver"

	defaultMaxAttempts    = 8
	defaultRequestTimeout = 10 * time.Second
	defaultWorkers        = 4
	defaultSweepLimit     = 50
	userAgent             = "community-webhooks/1"
)

// Dispatcher persists and delivers webhook events.
type Dispatcher struct {
	webhooks   core.WebhookStore
	deliveries core.DeliveryStore
	secrets    core.SecretProvider
	transport  core.TransportAdapter
	enqueuer   core.JobEnqueuer

	retry       RetryPolicy
	maxAttempts int
	timeout     time.Duration
	synchronous bool

	logger  core.Logger
	metrics core.MetricsRecorder
	now     func() time.Time
	newID   func() string

	slots chan struct{}
	wg    sync.WaitGroup
}

type Option func(*Dispatcher)

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(d *Dispatcher) {
		if policy != nil {
			d.retry = policy
		}
	}
}

func WithMaxAttempts(attempts int) Option {
	return func(d *Dispatcher) {
		if attempts > 0 {
			d.maxAttempts = attempts
		}
	}
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithWorkers bounds the number of in-flight background deliveries.
func WithWorkers(workers int) Option {
	return func(d *Dispatcher) {
		if workers > 0 {
			d.slots = make(chan struct{}, workers)
		}
	}
}

// WithJobEnqueuer hands deliveries to a job queue instead of the local pool.
func WithJobEnqueuer(enqueuer core.JobEnqueuer) Option {
	return func(d *Dispatcher) {
		d.enqueuer = enqueuer
	}
}

// WithSynchronousDelivery delivers inline during Publish.
func WithSynchronousDelivery() Option {
	return func(d *Dispatcher) {
		d.synchronous = true
	}
}

func WithLogger(logger core.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(d *Dispatcher) {
		if recorder != nil {
			d.metrics = recorder
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithConfig applies the webhooks section of the service config.
func WithConfig(cfg core.WebhooksConfig) Option {
	return func(d *Dispatcher) {
		WithRetryPolicy(ExponentialRetryPolicy{
			Initial: cfg.InitialBackoffDuration(),
			Max:     cfg.MaxBackoffDuration(),
		})(d)
		WithMaxAttempts(cfg.MaxAttempts)(d)
		WithWorkers(cfg.Workers)(d)
		if timeout, err := time.ParseDuration(strings.TrimSpace(cfg.RequestTimeout)); err == nil {
			WithRequestTimeout(timeout)(d)
		}
	}
}

func NewDispatcher(
	webhooks core.WebhookStore,
	deliveries core.DeliveryStore,
	secrets core.SecretProvider,
	transport core.TransportAdapter,
	opts ...Option,
) (*Dispatcher, error) {
	if webhooks == nil || deliveries == nil {
		return nil, fmt.Errorf("webhooks: dispatcher requires webhook and delivery stores")
	}
	if secrets == nil {
		return nil, fmt.Errorf("webhooks: dispatcher requires a secret provider")
	}
	if transport == nil {
		return nil, fmt.Errorf("webhooks: dispatcher requires a transport adapter")
	}
	d := &Dispatcher{
		webhooks:    webhooks,
		deliveries:  deliveries,
		secrets:     secrets,
		transport:   transport,
		retry:       ExponentialRetryPolicy{},
		maxAttempts: defaultMaxAttempts,
		timeout:     defaultRequestTimeout,
		logger:      glog.Nop(),
		metrics:     core.NopMetricsRecorder{},
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
		slots:       make(chan struct{}, defaultWorkers),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Publish records one pending delivery per matching active subscription and
// schedules it. Deliveries that cannot be scheduled stay pending and are
// picked up by RetryDue.
func (d *Dispatcher) Publish(ctx context.Context, event core.Event) error {
	eventType := strings.TrimSpace(event.Type)
	if eventType == "" {
		return core.BadInput("event type is required")
	}
	sysCtx := systemContext(ctx)
	subscriptions, err := d.webhooks.ListActiveForEvent(sysCtx, eventType)
	if err != nil {
		return err
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = d.now()
	}

	var errs []error
	for _, subscription := range subscriptions {
		delivery, err := d.createDelivery(sysCtx, subscription.ID, event)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := d.schedule(sysCtx, delivery.ID); err != nil {
			d.log(ctx, "warn", "webhook delivery not scheduled", map[string]any{
				"delivery_id": delivery.ID,
				"error":       err.Error(),
			})
		}
	}
	return errors.Join(errs...)
}

// Deliver performs one attempt for a delivery and records the outcome.
func (d *Dispatcher) Deliver(ctx context.Context, deliveryID string) (core.WebhookDelivery, error) {
	sysCtx := systemContext(ctx)
	delivery, err := d.deliveries.Get(sysCtx, strings.TrimSpace(deliveryID))
	if err != nil {
		return core.WebhookDelivery{}, err
	}
	if delivery.Status == core.DeliveryDelivered {
		return delivery, nil
	}
	subscription, err := d.webhooks.Get(sysCtx, delivery.SubscriptionID)
	if err != nil {
		return core.WebhookDelivery{}, err
	}
	if !subscription.Active {
		return d.record(sysCtx, delivery, 0, errors.New("subscription is inactive"))
	}
	return d.attempt(sysCtx, subscription, delivery)
}

// RetryDue re-attempts deliveries whose retry time has passed. It returns
// the number of deliveries attempted.
func (d *Dispatcher) RetryDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	sysCtx := systemContext(ctx)
	due, err := d.deliveries.ListDue(sysCtx, d.now(), limit)
	if err != nil {
		return 0, err
	}
	attempted := 0
	var errs []error
	for _, delivery := range due {
		if err := ctx.Err(); err != nil {
			return attempted, err
		}
		if _, err := d.Deliver(sysCtx, delivery.ID); err != nil {
			errs = append(errs, fmt.Errorf("delivery %s: %w", delivery.ID, err))
			continue
		}
		attempted++
	}
	d.metrics.IncCounter(ctx, "webhook_retry_sweeps_total", 1, nil)
	return attempted, errors.Join(errs...)
}

// Redeliver manually retries a delivery. Failed deliveries are moved back to
// retrying before the attempt; delivered ones are rejected.
func (d *Dispatcher) Redeliver(ctx context.Context, deliveryID string) (core.WebhookDelivery, error) {
	if err := requirePrivileged(ctx); err != nil {
		return core.WebhookDelivery{}, err
	}
	sysCtx := systemContext(ctx)
	delivery, err := d.deliveries.Get(sysCtx, strings.TrimSpace(deliveryID))
	if err != nil {
		return core.WebhookDelivery{}, err
	}
	switch delivery.Status {
	case core.DeliveryDelivered:
		return core.WebhookDelivery{}, core.Conflict("delivery was already delivered")
	case core.DeliveryFailed:
		now := d.now()
		delivery, err = d.deliveries.MarkRetry(sysCtx, delivery.ID, core.DeliveryAttempt{
			Attempts:      delivery.Attempts,
			StatusCode:    delivery.LastStatusCode,
			Error:         delivery.LastError,
			At:            now,
			NextAttemptAt: &now,
		})
		if err != nil {
			return core.WebhookDelivery{}, err
		}
	}
	subscription, err := d.webhooks.Get(sysCtx, delivery.SubscriptionID)
	if err != nil {
		return core.WebhookDelivery{}, err
	}
	return d.attempt(sysCtx, subscription, delivery)
}

// Ping sends a webhook.ping event to a single subscription, active or not.
func (d *Dispatcher) Ping(ctx context.Context, subscriptionID string) (core.WebhookDelivery, error) {
	if err := requirePrivileged(ctx); err != nil {
		return core.WebhookDelivery{}, err
	}
	sysCtx := systemContext(ctx)
	subscription, err := d.webhooks.Get(sysCtx, strings.TrimSpace(subscriptionID))
	if err != nil {
		return core.WebhookDelivery{}, err
	}
	delivery, err := d.createDelivery(sysCtx, subscription.ID, core.Event{
		ID:        d.newID(),
		Type:      core.EventWebhookPing,
		CreatedAt: d.now(),
		Data:      map[string]any{"subscription_id": subscription.ID},
	})
	if err != nil {
		return core.WebhookDelivery{}, err
	}
	return d.attempt(sysCtx, subscription, delivery)
}

// HandleJob delivers the delivery referenced by a queued job message.
func (d *Dispatcher) HandleJob(ctx context.Context, msg *core.JobExecutionMessage) error {
	if msg == nil {
		return fmt.Errorf("webhooks: job message is required")
	}
	deliveryID, _ := msg.Parameters["delivery_id"].(string)
	if strings.TrimSpace(deliveryID) == "" {
		return fmt.Errorf("webhooks: job %s has no delivery_id", msg.JobID)
	}
	delivery, err := d.Deliver(ctx, deliveryID)
	if err != nil {
		return err
	}
	if delivery.Status == core.DeliveryRetrying {
		return fmt.Errorf("webhooks: delivery %s will be retried: %s", delivery.ID, delivery.LastError)
	}
	return nil
}

// Wait blocks until background deliveries finish or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) createDelivery(ctx context.Context, subscriptionID string, event core.Event) (core.WebhookDelivery, error) {
	now := d.now()
	return d.deliveries.Create(ctx, core.WebhookDelivery{
		ID:             d.newID(),
		SubscriptionID: subscriptionID,
		EventID:        event.ID,
		EventType:      event.Type,
		Payload:        payloadEnvelope(event),
		Status:         core.DeliveryPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

func (d *Dispatcher) schedule(ctx context.Context, deliveryID string) error {
	if d.enqueuer != nil {
		return d.enqueuer.Enqueue(ctx, &core.JobExecutionMessage{
			JobID:          JobDeliver,
			Parameters:     map[string]any{"delivery_id": deliveryID},
			IdempotencyKey: deliveryID,
		})
	}
	if d.synchronous {
		_, err := d.Deliver(ctx, deliveryID)
		return err
	}
	select {
	case d.slots <- struct{}{}:
	default:
		return fmt.Errorf("webhooks: delivery pool is saturated")
	}
	d.wg.Add(1)
	bgCtx := context.WithoutCancel(ctx)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.slots }()
		if _, err := d.Deliver(bgCtx, deliveryID); err != nil {
			d.log(bgCtx, "error", "webhook delivery errored", map[string]any{
				"delivery_id": deliveryID,
				"error":       err.Error(),
			})
		}
	}()
	return nil
}

func (d *Dispatcher) attempt(ctx context.Context, subscription core.WebhookSubscription, delivery core.WebhookDelivery) (core.WebhookDelivery, error) {
	secret, err := d.secrets.Decrypt(ctx, subscription.EncryptedSecret)
	if err != nil {
		return d.record(ctx, delivery, 0, fmt.Errorf("decrypt subscription secret: %w", err))
	}
	body, err := json.Marshal(envelopeFromDelivery(delivery))
	if err != nil {
		return d.record(ctx, delivery, 0, fmt.Errorf("encode payload: %w", err))
	}
	timestamp := d.now().Unix()

	startedAt := time.Now()
	res, err := d.transport.Do(ctx, core.TransportRequest{
		Method: http.MethodPost,
		URL:    subscription.URL,
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"User-Agent":    userAgent,
			HeaderEvent:     delivery.EventType,
			HeaderDelivery:  delivery.ID,
			HeaderTimestamp: fmt.Sprintf("%d", timestamp),
			HeaderSignature: Sign(secret, timestamp, body),
		},
		Body:       body,
		Timeout:    d.timeout,
		MaxBodyLen: 64 << 10,
	})
	d.metrics.ObserveHistogram(ctx, "webhook_delivery_duration_seconds", time.Since(startedAt).Seconds(), map[string]string{
		"event_type": delivery.EventType,
	})
	if err == nil && res.Truncated {
		d.log(ctx, "debug", "webhook response body truncated", map[string]any{
			"delivery_id": delivery.ID,
			"status_code": res.StatusCode,
		})
	}
	if err == nil && (res.StatusCode < 200 || res.StatusCode > 299) {
		err = fmt.Errorf("endpoint responded with status %d", res.StatusCode)
	}
	return d.record(ctx, delivery, res.StatusCode, err)
}

func (d *Dispatcher) record(ctx context.Context, delivery core.WebhookDelivery, statusCode int, cause error) (core.WebhookDelivery, error) {
	now := d.now()
	attempt := core.DeliveryAttempt{
		Attempts:   delivery.Attempts + 1,
		StatusCode: statusCode,
		At:         now,
	}
	fields := map[string]any{
		"delivery_id":     delivery.ID,
		"subscription_id": delivery.SubscriptionID,
		"event_type":      delivery.EventType,
		"attempts":        attempt.Attempts,
		"status_code":     statusCode,
	}

	var (
		updated core.WebhookDelivery
		err     error
		outcome string
	)
	switch {
	case cause == nil:
		outcome = string(core.DeliveryDelivered)
		updated, err = d.deliveries.MarkDelivered(ctx, delivery.ID, attempt)
	case attempt.Attempts < d.maxAttempts:
		outcome = string(core.DeliveryRetrying)
		attempt.Error = truncate(cause.Error(), 500)
		next := now.Add(d.retry.NextDelay(attempt.Attempts))
		attempt.NextAttemptAt = &next
		fields["next_attempt_at"] = next
		updated, err = d.deliveries.MarkRetry(ctx, delivery.ID, attempt)
	default:
		outcome = string(core.DeliveryFailed)
		attempt.Error = truncate(cause.Error(), 500)
		updated, err = d.deliveries.MarkFailed(ctx, delivery.ID, attempt)
	}
	if err != nil {
		return core.WebhookDelivery{}, err
	}

	d.metrics.IncCounter(ctx, "webhook_deliveries_total", 1, map[string]string{
		"event_type": delivery.EventType,
		"outcome":    outcome,
	})
	fields["outcome"] = outcome
	if cause != nil {
		fields["error"] = attempt.Error
		d.log(ctx, "warn", "webhook delivery attempt failed", fields)
	} else {
		d.log(ctx, "info", "webhook delivered", fields)
	}
	return updated, nil
}

func (d *Dispatcher) log(ctx context.Context, level string, message string, fields map[string]any) {
	logger := d.logger
	if logger == nil {
		return
	}
	logger = logger.WithContext(ctx)
	args := make([]any, 0, len(fields)*2)
	for key, value := range core.RedactSensitiveMap(fields) {
		args = append(args, key, value)
	}
	switch level {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

// payloadEnvelope is what gets stored on the delivery row and later posted.
func payloadEnvelope(event core.Event) map[string]any {
	data := event.Data
	if data == nil {
		data = map[string]any{}
	}
	return map[string]any{
		"id":         event.ID,
		"type":       event.Type,
		"created_at": event.CreatedAt.UTC().Format(time.RFC3339Nano),
		"data":       data,
	}
}

func envelopeFromDelivery(delivery core.WebhookDelivery) map[string]any {
	if delivery.Payload != nil {
		if _, ok := delivery.Payload["data"]; ok {
			return delivery.Payload
		}
	}
	return payloadEnvelope(core.Event{
		ID:        delivery.EventID,
		Type:      delivery.EventType,
		CreatedAt: delivery.CreatedAt,
		Data:      delivery.Payload,
	})
}

func systemContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return core.WithPrincipal(ctx, core.SystemPrincipal())
}

func requirePrivileged(ctx context.Context) error {
	principal, ok := core.PrincipalFromContext(ctx)
	if !ok {
		return core.Unauthorized("authentication required")
	}
	if !principal.Privileged() {
		return core.Forbidden("admin or service role required")
	}
	return nil
}

// truncate caps value at limit bytes without splitting a rune.
func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}

var _ core.EventPublisher = (*Dispatcher)(nil)
