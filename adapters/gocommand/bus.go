// Package gocommand routes community commands and queries through the
// go-command registry and dispatcher.
package gocommand

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	gocmd "github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	goerrors "github.com/goliatone/go-errors"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

const queueResolverKey = "community.queue"

// Bus owns the registry community handlers are registered with and the
// dispatcher subscriptions routing messages to them. The go-command
// dispatcher is process wide, so a Bus must be closed before another one
// registers the same message types.
type Bus struct {
	registry *gocmd.Registry

	mu      sync.Mutex
	started bool
	subs    []commanddispatcher.Subscription
	types   map[string]struct{}
}

func NewBus(registry *gocmd.Registry) *Bus {
	if registry == nil {
		registry = gocmd.NewRegistry()
	}
	return &Bus{registry: registry, types: map[string]struct{}{}}
}

// MirrorToQueue copies every command into jobs when the bus starts, so a
// go-job worker can execute them by message type.
func (b *Bus) MirrorToQueue(jobs *jobqueuecommand.Registry) error {
	if jobs == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	if b.registry.HasResolver(queueResolverKey) {
		return nil
	}
	return b.registry.AddResolver(queueResolverKey, jobqueuecommand.QueueResolver(jobs))
}

// Start runs the registry resolvers. Handlers can no longer be added after it.
func (b *Bus) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	if err := b.registry.Initialize(); err != nil {
		return fmt.Errorf("gocommand: initialize registry: %w", err)
	}
	b.started = true
	return nil
}

// Close drops every dispatcher subscription.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.types = map[string]struct{}{}
	b.mu.Unlock()
	for _, sub := range subs {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

// Handles reports whether a handler for messageType is subscribed.
func (b *Bus) Handles(messageType string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.types[strings.TrimSpace(messageType)]
	return ok
}

// MessageTypes lists the subscribed message types in order.
func (b *Bus) MessageTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.types))
	for messageType := range b.types {
		out = append(out, messageType)
	}
	sort.Strings(out)
	return out
}

func (b *Bus) claim(messageType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return fmt.Errorf("gocommand: bus already started, cannot add %s", messageType)
	}
	if _, ok := b.types[messageType]; ok {
		return fmt.Errorf("gocommand: %s already has a handler", messageType)
	}
	b.types[messageType] = struct{}{}
	return nil
}

func (b *Bus) release(messageType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.types, messageType)
}

func (b *Bus) track(sub commanddispatcher.Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, sub)
}

// HandleCommand registers cmd and subscribes it for messages of type T.
func HandleCommand[T any](b *Bus, cmd gocmd.Commander[T], runnerOpts ...runner.Option) error {
	if b == nil {
		return fmt.Errorf("gocommand: bus is not configured")
	}
	if cmd == nil {
		return fmt.Errorf("gocommand: command is required")
	}
	messageType, err := typeOf[T]()
	if err != nil {
		return err
	}
	if err := b.claim(messageType); err != nil {
		return err
	}
	if err := b.registry.RegisterCommand(cmd); err != nil {
		b.release(messageType)
		return fmt.Errorf("gocommand: register %s: %w", messageType, err)
	}
	b.track(commanddispatcher.SubscribeCommand(cmd, runnerOpts...))
	return nil
}

// HandleQuery registers qry and subscribes it for messages of type T.
func HandleQuery[T any, R any](b *Bus, qry gocmd.Querier[T, R], runnerOpts ...runner.Option) error {
	if b == nil {
		return fmt.Errorf("gocommand: bus is not configured")
	}
	if qry == nil {
		return fmt.Errorf("gocommand: query is required")
	}
	messageType, err := typeOf[T]()
	if err != nil {
		return err
	}
	if err := b.claim(messageType); err != nil {
		return err
	}
	if err := b.registry.RegisterCommand(qry); err != nil {
		b.release(messageType)
		return fmt.Errorf("gocommand: register %s: %w", messageType, err)
	}
	b.track(commanddispatcher.SubscribeQuery(qry, runnerOpts...))
	return nil
}

// Dispatch runs the command subscribed for msg. Messages this bus does not
// handle fail with a not found error instead of being dropped.
func Dispatch[T any](ctx context.Context, b *Bus, msg T) error {
	messageType, err := typeOf[T]()
	if err != nil {
		return err
	}
	if b == nil || !b.Handles(messageType) {
		return unhandled(messageType)
	}
	return commanddispatcher.Dispatch(ctx, msg)
}

// Query runs the query subscribed for msg and returns its result.
func Query[T any, R any](ctx context.Context, b *Bus, msg T) (R, error) {
	var zero R
	messageType, err := typeOf[T]()
	if err != nil {
		return zero, err
	}
	if b == nil || !b.Handles(messageType) {
		return zero, unhandled(messageType)
	}
	return commanddispatcher.Query[T, R](ctx, msg)
}

func typeOf[T any]() (string, error) {
	var msg T
	typed, ok := any(msg).(gocmd.Message)
	if !ok {
		return "", fmt.Errorf("gocommand: %T must implement Type() string", msg)
	}
	messageType := strings.TrimSpace(typed.Type())
	if messageType == "" {
		return "", fmt.Errorf("gocommand: %T has an empty message type", msg)
	}
	return messageType, nil
}

func unhandled(messageType string) error {
	return goerrors.New("no community handler for "+messageType, goerrors.CategoryNotFound).
		WithTextCode("UNHANDLED_MESSAGE")
}
