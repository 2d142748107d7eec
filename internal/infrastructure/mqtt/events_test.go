package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeJSONPublisher struct {
	mu      sync.Mutex
	topics  []string
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeJSONPublisher) PublishJSON(topic string, _ any, _ bool) error {
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	return f.err
}

func (f *fakeJSONPublisher) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.topics...)
}

func TestEventPublisher_PublishesOnClose(t *testing.T) {
	fake := &fakeJSONPublisher{}
	p := NewEventPublisher(fake, nil)

	p.Enqueue("device.connected", map[string]string{"device_id": "dev-1"})
	p.Enqueue("command.sent", map[string]string{"device_id": "dev-1"})
	p.Close()

	got := fake.published()
	want := []string{
		"graylogic/remote/event/device.connected",
		"graylogic/remote/event/command.sent",
	}
	if len(got) != len(want) {
		t.Fatalf("published = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("published[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEventPublisher_DropsWhenFull(t *testing.T) {
	fake := &fakeJSONPublisher{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	p := NewEventPublisher(fake, nil)

	p.Enqueue("first", nil)
	select {
	case <-fake.started:
	case <-time.After(time.Second):
		t.Fatal("publisher goroutine never picked up the first event")
	}

	for i := 0; i < defaultEventBuffer; i++ {
		p.Enqueue("fill", nil)
	}
	p.Enqueue("overflow", nil)

	if got := p.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}

	close(fake.release)
	p.Close()

	if got := len(fake.published()); got != defaultEventBuffer+1 {
		t.Errorf("published %d events, want %d", got, defaultEventBuffer+1)
	}
}

func TestEventPublisher_LogsFailures(t *testing.T) {
	fake := &fakeJSONPublisher{err: errors.New("broker gone")}
	logger := &mockLogger{}
	p := NewEventPublisher(fake, logger)

	p.Enqueue("device.disconnected", nil)
	p.Close()

	if !logger.has("publishing session event failed") {
		t.Error("publish failure not logged")
	}
}

func TestEventPublisher_EnqueueAfterClose(t *testing.T) {
	fake := &fakeJSONPublisher{}
	p := NewEventPublisher(fake, nil)
	p.Close()
	p.Close()

	p.Enqueue("late", nil)
	if len(fake.published()) != 0 {
		t.Error("event published after Close")
	}
}
