package mqtt

import (
	"sync"
	"sync/atomic"
)

// defaultEventBuffer is the number of events queued before new ones are dropped.
const defaultEventBuffer = 256

// JSONPublisher is implemented by *Client.
type JSONPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

type queuedEvent struct {
	eventType string
	payload   any
}

// EventPublisher forwards events to the broker from a background goroutine
// so callers never wait on the network. When the queue is full the event
// is dropped and counted.
type EventPublisher struct {
	client  JSONPublisher
	queue   chan queuedEvent
	dropped atomic.Int64
	logger  Logger

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewEventPublisher starts a publisher writing to client.
func NewEventPublisher(client JSONPublisher, logger Logger) *EventPublisher {
	p := &EventPublisher{
		client: client,
		queue:  make(chan queuedEvent, defaultEventBuffer),
		logger: logger,
		done:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Enqueue schedules payload for publication on SessionEvent(eventType).
// It never blocks.
func (p *EventPublisher) Enqueue(eventType string, payload any) {
	select {
	case <-p.done:
		return
	default:
	}

	select {
	case p.queue <- queuedEvent{eventType: eventType, payload: payload}:
	default:
		p.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (p *EventPublisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close drains queued events and stops the background goroutine.
func (p *EventPublisher) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

func (p *EventPublisher) run() {
	defer p.wg.Done()
	for {
		select {
		case ev := <-p.queue:
			p.publish(ev)
		case <-p.done:
			for {
				select {
				case ev := <-p.queue:
					p.publish(ev)
				default:
					return
				}
			}
		}
	}
}

func (p *EventPublisher) publish(ev queuedEvent) {
	if err := p.client.PublishJSON(Topics{}.SessionEvent(ev.eventType), ev.payload, false); err != nil && p.logger != nil {
		p.logger.Warn("publishing session event failed", "event_type", ev.eventType, "error", err)
	}
}
