package gocommand

import (
	"context"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-community/core"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

type noteMessage struct {
	Text string
}

func (noteMessage) Type() string { return "community.test.note" }

type untypedMessage struct{}

type blankMessage struct{}

func (blankMessage) Type() string { return " " }

func TestBusRejectsDuplicateAndUntypedHandlers(t *testing.T) {
	bus := NewBus(nil)
	t.Cleanup(bus.Close)
	noop := gocmd.CommandFunc[noteMessage](func(context.Context, noteMessage) error { return nil })

	if err := HandleCommand[noteMessage](bus, noop); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := HandleCommand[noteMessage](bus, noop); err == nil {
		t.Fatalf("expected duplicate message type to be rejected")
	}
	if err := HandleCommand[untypedMessage](bus, gocmd.CommandFunc[untypedMessage](func(context.Context, untypedMessage) error { return nil })); err == nil {
		t.Fatalf("expected message without Type() to be rejected")
	}
	if err := HandleCommand[blankMessage](bus, gocmd.CommandFunc[blankMessage](func(context.Context, blankMessage) error { return nil })); err == nil {
		t.Fatalf("expected blank message type to be rejected")
	}
	if got := bus.MessageTypes(); len(got) != 1 || got[0] != "community.test.note" {
		t.Fatalf("unexpected message types %v", got)
	}

	if err := bus.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := HandleCommand[blankMessage](bus, gocmd.CommandFunc[blankMessage](func(context.Context, blankMessage) error { return nil })); err == nil {
		t.Fatalf("expected registration after start to fail")
	}
}

func TestDispatchRequiresSubscribedHandler(t *testing.T) {
	bus := NewBus(nil)
	err := Dispatch(context.Background(), bus, noteMessage{Text: "hello"})
	if !core.IsNotFound(err) {
		t.Fatalf("expected not found for unhandled message, got %v", err)
	}
	if _, err := Query[noteMessage, string](context.Background(), bus, noteMessage{}); !core.IsNotFound(err) {
		t.Fatalf("expected not found for unhandled query, got %v", err)
	}
}

func TestBusCloseUnsubscribes(t *testing.T) {
	bus := NewBus(nil)
	var notes []string
	if err := HandleCommand[noteMessage](bus, gocmd.CommandFunc[noteMessage](func(_ context.Context, msg noteMessage) error {
		notes = append(notes, msg.Text)
		return nil
	})); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Dispatch(context.Background(), bus, noteMessage{Text: "one"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	bus.Close()
	if bus.Handles("community.test.note") {
		t.Fatalf("expected handler to be released on close")
	}
	if err := Dispatch(context.Background(), bus, noteMessage{Text: "two"}); err == nil {
		t.Fatalf("expected dispatch after close to fail")
	}
	if len(notes) != 1 || notes[0] != "one" {
		t.Fatalf("expected exactly one delivered note, got %v", notes)
	}
}

func TestMirrorToQueueCopiesCommands(t *testing.T) {
	bus := NewBus(nil)
	t.Cleanup(bus.Close)
	jobs := jobqueuecommand.NewRegistry()

	if err := bus.MirrorToQueue(jobs); err != nil {
		t.Fatalf("mirror: %v", err)
	}
	if err := bus.MirrorToQueue(jobs); err != nil {
		t.Fatalf("second mirror should be a no-op: %v", err)
	}
	if err := bus.MirrorToQueue(nil); err == nil {
		t.Fatalf("expected error without queue registry")
	}
	if err := HandleCommand[noteMessage](bus, gocmd.CommandFunc[noteMessage](func(context.Context, noteMessage) error { return nil })); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := bus.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, ok := jobs.Get("community.test.note"); !ok {
		t.Fatalf("expected command to be mirrored into the queue registry")
	}
}
