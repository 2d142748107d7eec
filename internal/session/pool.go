package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Pool maps device IDs to live control connections.
//
// At most one Handle exists per device ID. Acquire reuses a connection while
// it passes its liveness probe and replaces it otherwise. Connection attempts
// are serialised per device: a slow connect to one device does not block
// Acquire, Release, or CloseAll for any other device.
//
// Lock ordering: a per-device lock is always taken before mu, and mu is never
// held across a provider call.
type Pool struct {
	registry *Registry
	link     LinkProvider

	entries map[string]Handle
	locks   map[string]*deviceLock // per-device; dropped when the last holder leaves
	mu      sync.Mutex             // Protects entries and locks

	emit   func(Event)
	logger Logger
}

// NewPool creates an empty connection pool.
func NewPool(registry *Registry, link LinkProvider) *Pool {
	return &Pool{
		registry: registry,
		link:     link,
		entries:  make(map[string]Handle),
		locks:    make(map[string]*deviceLock),
		emit:     func(Event) {},
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the pool.
func (p *Pool) SetLogger(logger Logger) {
	p.logger = logger
}

// setEmitter installs the event sink used for connect/disconnect events.
func (p *Pool) setEmitter(emit func(Event)) {
	p.emit = emit
}

// deviceLock serialises connection work for one device. refs counts
// holders and waiters and is guarded by Pool.mu.
type deviceLock struct {
	mu   sync.Mutex
	refs int
}

// lockDevice takes the per-device lock for id and returns its release func.
// The lock entry is removed once nobody holds or waits on it, so IDs that
// never resolve do not accumulate.
func (p *Pool) lockDevice(id string) func() {
	p.mu.Lock()
	l, ok := p.locks[id]
	if !ok {
		l = &deviceLock{}
		p.locks[id] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, id)
		}
		p.mu.Unlock()
	}
}

// Acquire returns the live connection for id, creating one if needed.
//
// The sequence is:
//  1. An existing handle is probed; if the probe fails it is closed and discarded.
//     A probe that fails because ctx is done leaves the handle pooled.
//  2. An ID missing from the registry triggers an additive rescan; still missing
//     after that is ErrDeviceNotFound.
//  3. A new connection is opened; failure returns ErrConnection and nothing is cached.
func (p *Pool) Acquire(ctx context.Context, id string) (Handle, error) {
	unlock := p.lockDevice(id)
	defer unlock()

	if h, ok := p.get(id); ok {
		_, err := h.Probe(ctx)
		if err == nil {
			return h, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("probing %s: %w", id, ctxErr)
		}
		p.logger.Warn("stale connection, reconnecting", "device_id", id, "error", err)
		p.remove(id)
		p.closeHandle(id, h)
		p.emit(Event{
			Type:      EventDeviceDisconnected,
			DeviceID:  id,
			Timestamp: time.Now().UTC(),
			Success:   true,
			Details:   map[string]any{"reason": "stale"},
		})
	}

	desc, err := p.resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	p.logger.Info("connecting to device", "device_id", id, "name", desc.Name, "address", desc.Address)
	start := time.Now()

	h, err := p.link.Connect(ctx, desc)
	if err != nil {
		p.logger.Error("failed to connect", "device_id", id, "name", desc.Name, "error", err)
		p.emit(Event{
			Type:      EventDeviceConnected,
			DeviceID:  id,
			Timestamp: time.Now().UTC(),
			Duration:  time.Since(start),
			Error:     err.Error(),
		})
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, desc.Name, err)
	}

	p.mu.Lock()
	p.entries[id] = h
	p.mu.Unlock()

	p.logger.Info("connected to device", "device_id", id, "name", desc.Name)
	p.emit(Event{
		Type:      EventDeviceConnected,
		DeviceID:  id,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Duration:  time.Since(start),
		Details:   map[string]any{"name": desc.Name},
	})
	return h, nil
}

// resolve finds the descriptor for id, rescanning once if it is unknown.
func (p *Pool) resolve(ctx context.Context, id string) (DeviceDescriptor, error) {
	desc, err := p.registry.Lookup(id)
	if err == nil {
		return desc, nil
	}
	if !errors.Is(err, ErrDeviceNotFound) {
		return DeviceDescriptor{}, err
	}

	p.logger.Info("device not in registry, rescanning", "device_id", id)
	if mergeErr := p.registry.Merge(ctx); mergeErr != nil {
		return DeviceDescriptor{}, mergeErr
	}
	return p.registry.Lookup(id)
}

// Release closes and forgets the connection for id.
// It reports whether a connection was present; releasing an unknown or
// disconnected ID is not an error.
func (p *Pool) Release(id string) bool {
	unlock := p.lockDevice(id)
	defer unlock()

	h, ok := p.remove(id)
	if !ok {
		return false
	}
	p.closeHandle(id, h)
	p.logger.Info("disconnected from device", "device_id", id)
	p.emit(Event{
		Type:      EventDeviceDisconnected,
		DeviceID:  id,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Details:   map[string]any{"reason": "released"},
	})
	return true
}

// CloseAll closes every connection and empties the pool.
//
// Intended for orderly shutdown. A handle that panics while closing is
// logged and skipped; every other handle is still closed exactly once.
func (p *Pool) CloseAll() {
	for _, id := range p.IDs() {
		unlock := p.lockDevice(id)
		h, ok := p.remove(id)
		if ok {
			p.closeHandle(id, h)
			p.logger.Info("closed connection", "device_id", id)
		}
		unlock()

		if ok {
			p.emit(Event{
				Type:      EventDeviceDisconnected,
				DeviceID:  id,
				Timestamp: time.Now().UTC(),
				Success:   true,
				Details:   map[string]any{"reason": "shutdown"},
			})
		}
	}
}

// Peek returns the current handle for id without probing or connecting.
func (p *Pool) Peek(id string) (Handle, bool) {
	return p.get(id)
}

// IsConnected reports whether the pool holds a handle for id.
// The handle may be stale; only Acquire probes it.
func (p *Pool) IsConnected(id string) bool {
	_, ok := p.get(id)
	return ok
}

// IDs returns the device IDs with a pooled connection, sorted.
func (p *Pool) IDs() []string {
	p.mu.Lock()
	ids := make([]string, 0, len(p.entries))
	for id := range p.entries {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of pooled connections.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *Pool) get(id string) (Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.entries[id]
	return h, ok
}

func (p *Pool) remove(id string) (Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.entries[id]
	if ok {
		delete(p.entries, id)
	}
	return h, ok
}

// closeHandle closes h, absorbing any panic from a misbehaving provider.
func (p *Pool) closeHandle(id string, h Handle) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("error closing connection", "device_id", id, "panic", r)
		}
	}()
	h.Close()
}
