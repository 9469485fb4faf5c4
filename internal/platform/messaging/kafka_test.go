package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"campusvote/internal/shared/events"
)

func TestKafkaDeliversToSubscribers(t *testing.T) {
	bus, err := NewKafka([]string{"localhost:9092"}, nil)
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.Envelope, 1)
	if err := bus.Subscribe(ctx, "election.notification.requested", "test-cg", func(_ context.Context, event events.Envelope) error {
		received <- event
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := bus.Publish(ctx, "election.notification.requested", events.Envelope{
		EventID:   "evt-1",
		EventType: "election.notification.requested",
		Payload:   json.RawMessage(`{"notification_id":"n-1"}`),
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case event := <-received:
		if event.EventID != "evt-1" {
			t.Fatalf("unexpected event %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event was not delivered")
	}
}

func TestKafkaIgnoresOtherTopics(t *testing.T) {
	bus, _ := NewKafka(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.Envelope, 1)
	_ = bus.Subscribe(ctx, "a", "cg", func(_ context.Context, event events.Envelope) error {
		received <- event
		return nil
	})
	if err := bus.Publish(ctx, "b", events.Envelope{EventID: "evt-2"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case event := <-received:
		t.Fatalf("unexpected delivery %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestKafkaDeliversOncePerConsumerGroup(t *testing.T) {
	bus, _ := NewKafka(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	counts := map[string]int{}
	record := func(group string) func(context.Context, events.Envelope) error {
		return func(context.Context, events.Envelope) error {
			mu.Lock()
			counts[group]++
			mu.Unlock()
			return nil
		}
	}
	_ = bus.Subscribe(ctx, "topic", "mailer", record("mailer"))
	_ = bus.Subscribe(ctx, "topic", "mailer", record("mailer"))
	_ = bus.Subscribe(ctx, "topic", "audit", record("audit"))
	if got := bus.Groups("topic"); got != 2 {
		t.Fatalf("expected 2 groups, got %d", got)
	}

	for i := 0; i < 10; i++ {
		if err := bus.Publish(ctx, "topic", events.Envelope{EventID: "evt"}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := counts["mailer"] == 10 && counts["audit"] == 10
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if counts["mailer"] != 10 || counts["audit"] != 10 {
		t.Fatalf("expected 10 deliveries per group, got %+v", counts)
	}
}

func TestKafkaGroupLeavesAfterCancel(t *testing.T) {
	bus, _ := NewKafka(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	_ = bus.Subscribe(ctx, "topic", "cg", func(context.Context, events.Envelope) error { return nil })
	cancel()

	deadline := time.Now().Add(time.Second)
	for bus.Groups("topic") != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("consumer group was not removed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestKafkaRejectsInvalidSubscription(t *testing.T) {
	bus, _ := NewKafka(nil, nil)
	if err := bus.Subscribe(context.Background(), "topic", "", func(context.Context, events.Envelope) error { return nil }); err == nil {
		t.Fatalf("expected missing consumer group to fail")
	}
	if _, err := NewKafkaWithBuffer(nil, 0, nil); err == nil {
		t.Fatalf("expected zero buffer to fail")
	}
}
