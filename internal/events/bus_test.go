package events

import (
	"sync"
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	var mu sync.Mutex
	var received []Event

	bus.Subscribe(func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	}, EventTaskCompleted)

	bus.Publish(NewTypedEvent(SourceWorker, TaskCompletedPayload{TaskID: "task_a", Name: "ping"}))
	bus.Publish(NewTypedEvent(SourceScheduler, ScheduleTriggerPayload{TaskID: "task_a", Trigger: "interval"}))

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	if received[0].Type != EventTaskCompleted {
		t.Errorf("expected task.completed, got %s", received[0].Type)
	}
}

func TestBusSubscribeAll(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	var mu sync.Mutex
	count := 0

	bus.Subscribe(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.Publish(NewTypedEvent(SourceAgent, AgentCyclePayload{Agent: "primary", Cycle: 1}))
	bus.Publish(NewTypedEvent(SourceCritic, AgentOutputPayload{Agent: "critic", Content: "review"}))

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if count != 2 {
		t.Errorf("expected 2 events, got %d", count)
	}
}

func TestExtractPayloadRoundTrip(t *testing.T) {
	e := NewTypedEvent(SourceWorker, TaskFailedPayload{TaskID: "task_x", Name: "probe", RunNumber: 3, Error: "boom"})

	payload, ok := GetTaskFailedPayload(e)
	if !ok {
		t.Fatal("failed to extract task failed payload")
	}
	if payload.RunNumber != 3 || payload.Error != "boom" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(3)

	for i := 0; i < 5; i++ {
		rb.Add(NewTypedEvent(SourceManager, TaskQueuedPayload{TaskID: "task_n", Name: "n"}))
	}

	evs := rb.Get(10)
	if len(evs) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evs))
	}
}

func TestSubscribeChan(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	ch, unsub := bus.SubscribeChan(8, EventAgentOutput)
	defer unsub()

	bus.Publish(NewTypedEvent(SourceAgent, AgentOutputPayload{Agent: "primary", Cycle: 1, Content: "hi"}))

	select {
	case e := <-ch:
		if e.Type != EventAgentOutput {
			t.Errorf("expected agent.output, got %s", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPublishAfterClose(t *testing.T) {
	bus := NewBus(8)
	bus.Close()

	// Must not panic or block.
	bus.Publish(NewTypedEvent(SourceManager, TaskQueuedPayload{TaskID: "task_z"}))
}
