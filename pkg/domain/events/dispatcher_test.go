package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/agentflow/pkg/domain/events"
)

func TestDispatcher_RoutesByType(t *testing.T) {
	d := events.NewDispatcher()

	var got []string
	d.Register("listener", func(ctx context.Context, e events.Event) error {
		got = append(got, e.EventType())
		return nil
	}, events.TypeTaskDispatched)

	err := d.Publish(context.Background(), events.TaskDispatched{TaskID: "t1", Timestamp: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	err = d.Publish(context.Background(), events.ProjectCompleted{ProjectID: "p1", Timestamp: time.Now()})
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 || got[0] != events.TypeTaskDispatched {
		t.Errorf("expected only task_dispatched, got %v", got)
	}
}

func TestDispatcher_Wildcard(t *testing.T) {
	d := events.NewDispatcher()

	count := 0
	d.Register("all", func(ctx context.Context, e events.Event) error {
		count++
		return nil
	}, "*")

	_ = d.Publish(context.Background(), events.TaskDispatched{Timestamp: time.Now()})
	_ = d.Publish(context.Background(), events.PlanningCompleted{Timestamp: time.Now()})

	if count != 2 {
		t.Errorf("wildcard handler should see every event, saw %d", count)
	}
}

func TestDispatcher_AllHandlersRunDespiteFailure(t *testing.T) {
	d := events.NewDispatcher()

	boom := errors.New("boom")
	d.Register("failing", func(ctx context.Context, e events.Event) error {
		return boom
	}, "*")

	ran := false
	d.Register("healthy", func(ctx context.Context, e events.Event) error {
		ran = true
		return nil
	}, "*")

	err := d.Publish(context.Background(), events.ProjectCompleted{Timestamp: time.Now()})
	if err == nil {
		t.Fatal("expected collected error")
	}
	if !ran {
		t.Error("healthy handler must run even after an earlier failure")
	}
	if !errors.Is(err, boom) {
		t.Error("collected error should unwrap to the handler error")
	}
}

func TestDispatcher_HasHandlers(t *testing.T) {
	d := events.NewDispatcher()
	if d.HasHandlers(events.TypeProjectCompleted) {
		t.Error("empty dispatcher should have no handlers")
	}
	d.Register("x", func(ctx context.Context, e events.Event) error { return nil }, events.TypeProjectCompleted)
	if !d.HasHandlers(events.TypeProjectCompleted) {
		t.Error("expected handler to be registered")
	}
	d.Clear()
	if d.HasHandlers(events.TypeProjectCompleted) {
		t.Error("Clear should remove all handlers")
	}
}
