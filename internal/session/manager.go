package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// defaultSweepInterval is how often expired pairing sessions are removed.
const defaultSweepInterval = 30 * time.Second

// Options configures a Manager.
type Options struct {
	// Discovery performs network scans. Required.
	Discovery DiscoveryProvider

	// Link opens control connections and pairing handshakes. Required.
	Link LinkProvider

	// ScanTimeout bounds each discovery scan. Zero selects DefaultScanTimeout.
	ScanTimeout time.Duration

	// PairingTTL is how long an unfinished pairing is kept. Zero selects DefaultPairingTTL.
	PairingTTL time.Duration

	// SweepInterval is how often expired pairings are removed.
	SweepInterval time.Duration

	// RescanInterval triggers a periodic wholesale rescan. Zero disables it.
	RescanInterval time.Duration

	// Logger receives component logs. Nil discards them.
	Logger Logger
}

// Health summarises the manager's state.
type Health struct {
	Status            string `json:"status"`
	DiscoveredDevices int    `json:"discovered_devices"`
	ActiveConnections int    `json:"active_connections"`
	PairingSessions   int    `json:"pairing_sessions"`
}

// ConnectResult is returned by an explicit connect.
type ConnectResult struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
}

// Manager is the device session root: it owns the registry, connection
// pool, pairing coordinator, and the components built on them.
//
// One Manager is constructed per process and shared by every request
// handler. All methods are safe for concurrent use.
type Manager struct {
	registry   *Registry
	pool       *Pool
	pairing    *Pairing
	dispatcher *Dispatcher
	nowPlaying *NowPlaying
	apps       *Apps

	sweepInterval  time.Duration
	rescanInterval time.Duration

	observers   []Observer
	observersMu sync.RWMutex

	logger Logger

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// NewManager wires the session components together.
func NewManager(opts Options) (*Manager, error) {
	if opts.Discovery == nil {
		return nil, errors.New("session: discovery provider is required")
	}
	if opts.Link == nil {
		return nil, errors.New("session: link provider is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	sweep := opts.SweepInterval
	if sweep <= 0 {
		sweep = defaultSweepInterval
	}

	registry := NewRegistry(opts.Discovery, opts.ScanTimeout)
	pool := NewPool(registry, opts.Link)
	m := &Manager{
		registry:       registry,
		pool:           pool,
		pairing:        NewPairing(registry, opts.Link, opts.PairingTTL),
		dispatcher:     NewDispatcher(pool),
		nowPlaying:     NewNowPlaying(pool),
		apps:           NewApps(pool),
		sweepInterval:  sweep,
		rescanInterval: opts.RescanInterval,
		logger:         logger,
		done:           make(chan struct{}),
	}
	pool.setEmitter(m.emit)
	m.SetLogger(logger)

	return m, nil
}

// SetLogger sets the logger for the manager and all of its components.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
	m.registry.SetLogger(logger)
	m.pool.SetLogger(logger)
	m.pairing.SetLogger(logger)
	m.dispatcher.SetLogger(logger)
	m.nowPlaying.SetLogger(logger)
	m.apps.SetLogger(logger)
}

// AddObserver registers an observer for session events.
func (m *Manager) AddObserver(o Observer) {
	m.observersMu.Lock()
	m.observers = append(m.observers, o)
	m.observersMu.Unlock()
}

func (m *Manager) emit(e Event) {
	m.observersMu.RLock()
	observers := m.observers
	m.observersMu.RUnlock()

	for _, o := range observers {
		o.Observe(e)
	}
}

// Start runs the startup scan and launches background maintenance.
//
// A failed startup scan is logged and leaves the registry empty so the
// service stays reachable for a later rescan. Start never returns an error
// for that reason; the signature mirrors the other long-running components.
func (m *Manager) Start(ctx context.Context) error {
	m.startOnce.Do(func() {
		m.logger.Info("scanning for devices on startup")
		devices, err := m.registry.Rescan(ctx)
		if err != nil {
			m.logger.Warn("initial scan failed", "error", err)
		} else {
			m.logger.Info("initial scan complete", "devices", len(devices))
		}
		m.emit(Event{
			Type:      EventDevicesScanned,
			Timestamp: time.Now().UTC(),
			Success:   err == nil,
			Error:     errString(err),
			Details:   map[string]any{"count": len(devices), "trigger": "startup"},
		})

		m.wg.Add(1)
		go m.maintenanceLoop(ctx)
	})
	return nil
}

// Close stops background work, closes every connection and disposes every
// pairing session. Safe to call more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.wg.Wait()

		m.logger.Info("closing device connections", "count", m.pool.Len())
		m.pool.CloseAll()
		m.pairing.CloseAll()
	})
}

// maintenanceLoop sweeps expired pairings and, if configured, rescans.
func (m *Manager) maintenanceLoop(ctx context.Context) {
	defer m.wg.Done()

	sweep := time.NewTicker(m.sweepInterval)
	defer sweep.Stop()

	var rescan <-chan time.Time
	if m.rescanInterval > 0 {
		t := time.NewTicker(m.rescanInterval)
		defer t.Stop()
		rescan = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-sweep.C:
			m.pairing.Sweep()
		case <-rescan:
			if _, err := m.rescan(ctx, "periodic"); err != nil {
				m.logger.Warn("periodic rescan failed", "error", err)
			}
		}
	}
}

// ListDevices returns every known device with its connection status.
func (m *Manager) ListDevices() []DeviceView {
	return m.views(m.registry.List())
}

// Rescan replaces the registry with a fresh scan. Live connections to
// devices that disappeared are left open.
func (m *Manager) Rescan(ctx context.Context) ([]DeviceView, error) {
	devices, err := m.rescan(ctx, "manual")
	if err != nil {
		return nil, err
	}
	return m.views(devices), nil
}

func (m *Manager) rescan(ctx context.Context, trigger string) ([]DeviceDescriptor, error) {
	start := time.Now()
	devices, err := m.registry.Rescan(ctx)
	m.emit(Event{
		Type:      EventDevicesScanned,
		Timestamp: time.Now().UTC(),
		Success:   err == nil,
		Duration:  time.Since(start),
		Error:     errString(err),
		Details:   map[string]any{"count": len(devices), "trigger": trigger},
	})
	return devices, err
}

// DeviceInfo returns one known device. When a connection is pooled, the
// model and OS version it reports are filled in; a failing probe is ignored.
func (m *Manager) DeviceInfo(ctx context.Context, id string) (*DeviceView, error) {
	desc, err := m.registry.Lookup(id)
	if err != nil {
		return nil, err
	}

	view := &DeviceView{DeviceDescriptor: desc}
	if h, ok := m.pool.Peek(id); ok {
		view.IsConnected = true
		if info, err := h.Probe(ctx); err == nil {
			if info.Model != "" {
				view.Model = info.Model
			}
			if info.OSVersion != "" {
				view.OSVersion = info.OSVersion
			}
		}
	}
	return view, nil
}

// StartPairing begins a pairing handshake with id.
func (m *Manager) StartPairing(ctx context.Context, id string, protocol ProtocolChoice) (*PairingPrompt, error) {
	prompt, err := m.pairing.Start(ctx, id, protocol)
	m.emit(Event{
		Type:      EventPairingStarted,
		DeviceID:  id,
		Timestamp: time.Now().UTC(),
		Success:   err == nil,
		Error:     errString(err),
		Details:   map[string]any{"protocol": string(protocol)},
	})
	return prompt, err
}

// FinishPairing submits pin and completes the handshake with id.
func (m *Manager) FinishPairing(ctx context.Context, id, pin string) (*PairingResult, error) {
	result, err := m.pairing.Finish(ctx, id, pin)
	details := map[string]any{}
	if result != nil {
		details["protocol"] = string(result.Protocol)
	}
	m.emit(Event{
		Type:      EventPairingFinished,
		DeviceID:  id,
		Timestamp: time.Now().UTC(),
		Success:   err == nil,
		Error:     errString(err),
		Details:   details,
	})
	return result, err
}

// CancelPairing disposes the pairing session for id. It reports whether one existed.
func (m *Manager) CancelPairing(id string) bool {
	return m.pairing.Cancel(id)
}

// PairingState returns the pairing state for id.
func (m *Manager) PairingState(id string) PairingState {
	return m.pairing.State(id)
}

// SendCommand performs a named remote command on id.
func (m *Manager) SendCommand(ctx context.Context, id, command string) error {
	start := time.Now()
	err := m.dispatcher.Send(ctx, id, command)
	if errors.Is(err, ErrUnknownCommand) {
		return err
	}
	m.emit(Event{
		Type:      EventCommandSent,
		DeviceID:  id,
		Timestamp: time.Now().UTC(),
		Success:   err == nil,
		Duration:  time.Since(start),
		Error:     errString(err),
		Details:   map[string]any{"command": command},
	})
	return err
}

// Commands returns the remote command catalog.
func (m *Manager) Commands() []string {
	return Commands()
}

// NowPlaying returns a playback snapshot for id.
func (m *Manager) NowPlaying(ctx context.Context, id string) (*NowPlayingSnapshot, error) {
	return m.nowPlaying.Snapshot(ctx, id)
}

// ListApps returns the apps installed on id.
func (m *Manager) ListApps(ctx context.Context, id string) (*AppListResult, error) {
	return m.apps.List(ctx, id)
}

// LaunchApp starts appID on id.
func (m *Manager) LaunchApp(ctx context.Context, id, appID string) error {
	start := time.Now()
	err := m.apps.Launch(ctx, id, appID)
	m.emit(Event{
		Type:      EventAppLaunched,
		DeviceID:  id,
		Timestamp: time.Now().UTC(),
		Success:   err == nil,
		Duration:  time.Since(start),
		Error:     errString(err),
		Details:   map[string]any{"app_id": appID},
	})
	return err
}

// Connect opens (or reuses) the connection to id.
func (m *Manager) Connect(ctx context.Context, id string) (*ConnectResult, error) {
	if _, err := m.pool.Acquire(ctx, id); err != nil {
		return nil, err
	}

	name := "Unknown"
	if desc, err := m.registry.Lookup(id); err == nil {
		name = desc.Name
	}
	return &ConnectResult{DeviceID: id, Name: name}, nil
}

// Disconnect closes the connection to id. It reports whether one was open.
func (m *Manager) Disconnect(id string) bool {
	return m.pool.Release(id)
}

// Health reports device, connection, and pairing counts.
func (m *Manager) Health() Health {
	return Health{
		Status:            "healthy",
		DiscoveredDevices: m.registry.Len(),
		ActiveConnections: m.pool.Len(),
		PairingSessions:   m.pairing.Len(),
	}
}

// IsConnected reports whether a connection to id is pooled.
func (m *Manager) IsConnected(id string) bool {
	return m.pool.IsConnected(id)
}

func (m *Manager) views(devices []DeviceDescriptor) []DeviceView {
	views := make([]DeviceView, len(devices))
	for i, d := range devices {
		views[i] = DeviceView{DeviceDescriptor: d, IsConnected: m.pool.IsConnected(d.ID)}
	}
	return views
}

// String implements fmt.Stringer for log output.
func (h Health) String() string {
	return fmt.Sprintf("%s: %d devices, %d connections, %d pairing",
		h.Status, h.DiscoveredDevices, h.ActiveConnections, h.PairingSessions)
}
