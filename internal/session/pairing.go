package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultPairingTTL is how long an unfinished pairing session is kept.
const DefaultPairingTTL = 5 * time.Minute

// PairingState is the position of a device in the pairing handshake.
type PairingState string

const (
	PairingIdle         PairingState = "idle"
	PairingStarted      PairingState = "started"
	PairingPinSubmitted PairingState = "pin_submitted"
	PairingCompleted    PairingState = "completed"
	PairingFailed       PairingState = "failed"
)

// PairingPrompt tells the caller what to do after starting a pairing.
type PairingPrompt struct {
	Protocol    ProtocolChoice `json:"protocol"`
	RequiresPIN bool           `json:"requires_pin"`
	Message     string         `json:"message"`
}

// PairingResult carries the credentials issued by a completed pairing.
// The credentials are returned to the caller only and never stored.
type PairingResult struct {
	Protocol    ProtocolChoice `json:"protocol"`
	Credentials string         `json:"credentials"`
}

// pairingSession is one device's in-flight handshake.
type pairingSession struct {
	protocol  ProtocolChoice
	handle    PairingHandle
	state     PairingState
	startedAt time.Time
}

// Pairing tracks in-progress pairing handshakes, one per device ID.
//
// Pairing state is independent of the connection pool. Starting a pairing
// for a device that already has one disposes the old provider-side object
// before replacing it.
type Pairing struct {
	registry *Registry
	link     LinkProvider
	ttl      time.Duration
	now      func() time.Time

	sessions map[string]*pairingSession
	mu       sync.Mutex // Protects sessions

	logger Logger
}

// NewPairing creates a pairing coordinator. A non-positive ttl selects
// DefaultPairingTTL.
func NewPairing(registry *Registry, link LinkProvider, ttl time.Duration) *Pairing {
	if ttl <= 0 {
		ttl = DefaultPairingTTL
	}
	return &Pairing{
		registry: registry,
		link:     link,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*pairingSession),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the coordinator.
func (p *Pairing) SetLogger(logger Logger) {
	p.logger = logger
}

// Start begins pairing with device id using the chosen protocol.
//
// The device must be in the registry (no rescan is attempted). On success
// the device displays a PIN and the returned prompt asks for it.
func (p *Pairing) Start(ctx context.Context, id string, protocol ProtocolChoice) (*PairingPrompt, error) {
	desc, err := p.registry.Lookup(id)
	if err != nil {
		return nil, err
	}

	h, err := p.link.Pair(ctx, desc, protocol)
	if err != nil {
		p.logger.Error("failed to start pairing", "device_id", id, "protocol", protocol, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPairingStart, err)
	}
	if err := h.Begin(ctx); err != nil {
		disposePairing(h)
		p.logger.Error("failed to start pairing", "device_id", id, "protocol", protocol, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPairingStart, err)
	}

	p.mu.Lock()
	prev := p.sessions[id]
	p.sessions[id] = &pairingSession{
		protocol:  protocol,
		handle:    h,
		state:     PairingStarted,
		startedAt: p.now(),
	}
	p.mu.Unlock()

	if prev != nil {
		p.logger.Info("replacing pairing session", "device_id", id, "previous_state", prev.state)
		disposePairing(prev.handle)
	}

	p.logger.Info("pairing started", "device_id", id, "protocol", protocol)
	return &PairingPrompt{
		Protocol:    protocol,
		RequiresPIN: true,
		Message:     fmt.Sprintf("Pairing started with %s protocol. Enter the PIN shown on %s.", protocol, desc.Name),
	}, nil
}

// Finish submits pin and completes the handshake for device id.
//
// On success the session is removed and the credentials are returned. If the
// device rejects the handshake the session is removed as well and
// ErrPairingIncomplete is returned; pairing must be restarted. A provider
// error during submission or finish returns ErrPairingFinish and leaves the
// session in place until it is replaced, cancelled, or expires.
func (p *Pairing) Finish(ctx context.Context, id, pin string) (*PairingResult, error) {
	p.mu.Lock()
	s, ok := p.sessions[id]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoActiveSession, id)
	}

	if err := s.handle.SubmitPIN(ctx, pin); err != nil {
		p.logger.Error("failed to submit PIN", "device_id", id, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPairingFinish, err)
	}
	p.setState(s, PairingPinSubmitted)

	if err := s.handle.Finish(ctx); err != nil {
		p.logger.Error("failed to finish pairing", "device_id", id, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPairingFinish, err)
	}

	if !s.handle.HasPaired() {
		p.setState(s, PairingFailed)
		p.discard(id, s)
		p.logger.Warn("pairing not completed", "device_id", id, "protocol", s.protocol)
		return nil, fmt.Errorf("%w: %s", ErrPairingIncomplete, id)
	}

	creds := s.handle.Credentials()
	p.setState(s, PairingCompleted)
	p.discard(id, s)

	p.logger.Info("pairing successful", "device_id", id, "protocol", s.protocol)
	return &PairingResult{Protocol: s.protocol, Credentials: creds}, nil
}

// Cancel disposes the pairing session for id, if any.
func (p *Pairing) Cancel(id string) bool {
	p.mu.Lock()
	s, ok := p.sessions[id]
	if ok {
		delete(p.sessions, id)
	}
	p.mu.Unlock()

	if ok {
		disposePairing(s.handle)
		p.logger.Info("pairing cancelled", "device_id", id)
	}
	return ok
}

// State returns the pairing state for id. Devices without a session are idle.
func (p *Pairing) State(id string) PairingState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sessions[id]; ok {
		return s.state
	}
	return PairingIdle
}

// Len returns the number of in-flight pairing sessions.
func (p *Pairing) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Sweep disposes sessions older than the TTL and returns how many it removed.
func (p *Pairing) Sweep() int {
	cutoff := p.now().Add(-p.ttl)

	var expired []*pairingSession
	p.mu.Lock()
	for id, s := range p.sessions {
		if s.startedAt.Before(cutoff) {
			expired = append(expired, s)
			delete(p.sessions, id)
		}
	}
	p.mu.Unlock()

	for _, s := range expired {
		disposePairing(s.handle)
	}
	if len(expired) > 0 {
		p.logger.Info("expired pairing sessions removed", "count", len(expired))
	}
	return len(expired)
}

// CloseAll disposes every pairing session.
func (p *Pairing) CloseAll() {
	p.mu.Lock()
	sessions := p.sessions
	p.sessions = make(map[string]*pairingSession)
	p.mu.Unlock()

	for _, s := range sessions {
		disposePairing(s.handle)
	}
}

func (p *Pairing) setState(s *pairingSession, state PairingState) {
	p.mu.Lock()
	s.state = state
	p.mu.Unlock()
}

// discard removes s if it is still the session for id, then disposes it.
// A concurrent Start may already have replaced (and disposed) it.
func (p *Pairing) discard(id string, s *pairingSession) {
	p.mu.Lock()
	current, ok := p.sessions[id]
	if ok && current == s {
		delete(p.sessions, id)
	}
	p.mu.Unlock()

	if ok && current == s {
		disposePairing(s.handle)
	}
}

// disposePairing closes h, absorbing any panic from the provider.
func disposePairing(h PairingHandle) {
	defer func() {
		recover() //nolint:errcheck // Close must not fail; absorb provider panics
	}()
	h.Close()
}
