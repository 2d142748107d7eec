package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the session components.
// logging.Logger and *slog.Logger both satisfy it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry caches the descriptors returned by the most recent discovery scan.
//
// The cache is replaced wholesale by Rescan and extended by Merge. Removing a
// device from the cache does not touch any live connection to it.
//
// All public methods are thread-safe.
type Registry struct {
	discovery DiscoveryProvider
	timeout   time.Duration

	devices map[string]DeviceDescriptor
	mu      sync.RWMutex // Protects devices

	// scanMu serialises scans so two rescans cannot interleave their writes.
	scanMu sync.Mutex

	logger Logger
}

// NewRegistry creates an empty registry backed by the given discovery provider.
// A non-positive timeout selects DefaultScanTimeout.
func NewRegistry(discovery DiscoveryProvider, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}
	return &Registry{
		discovery: discovery,
		timeout:   timeout,
		devices:   make(map[string]DeviceDescriptor),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Scan runs a discovery scan without touching the cache.
// Provider failures are wrapped in ErrScan.
func (r *Registry) Scan(ctx context.Context, timeout time.Duration) ([]DeviceDescriptor, error) {
	if timeout <= 0 {
		timeout = r.timeout
	}

	r.logger.Info("scanning for devices", "timeout", timeout.String())
	start := time.Now()

	devices, err := r.discovery.Scan(ctx, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScan, err)
	}

	r.logger.Info("scan complete",
		"found", len(devices),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return devices, nil
}

// Rescan scans the network and replaces the entire cache with the result.
// Devices not seen in this scan disappear from the registry. On failure the
// previous cache is left intact.
func (r *Registry) Rescan(ctx context.Context) ([]DeviceDescriptor, error) {
	r.scanMu.Lock()
	defer r.scanMu.Unlock()

	devices, err := r.Scan(ctx, r.timeout)
	if err != nil {
		return nil, err
	}

	fresh := make(map[string]DeviceDescriptor, len(devices))
	for _, d := range devices {
		fresh[d.ID] = d
	}

	r.mu.Lock()
	r.devices = fresh
	r.mu.Unlock()

	return sortDescriptors(devices), nil
}

// Merge scans the network and adds or replaces the descriptors found,
// keeping devices that did not answer this time.
func (r *Registry) Merge(ctx context.Context) error {
	r.scanMu.Lock()
	defer r.scanMu.Unlock()

	devices, err := r.Scan(ctx, r.timeout)
	if err != nil {
		return err
	}

	r.mu.Lock()
	for _, d := range devices {
		r.devices[d.ID] = d
	}
	r.mu.Unlock()

	return nil
}

// Lookup returns the cached descriptor for id.
// Returns ErrDeviceNotFound if the device is not in the cache.
func (r *Registry) Lookup(id string) (DeviceDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return DeviceDescriptor{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return d, nil
}

// List returns all cached descriptors ordered by name, then ID.
func (r *Registry) List() []DeviceDescriptor {
	r.mu.RLock()
	devices := make([]DeviceDescriptor, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	r.mu.RUnlock()

	return sortDescriptors(devices)
}

// Len returns the number of cached devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// sortDescriptors orders descriptors by name, then ID, in place.
func sortDescriptors(devices []DeviceDescriptor) []DeviceDescriptor {
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Name != devices[j].Name {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].ID < devices[j].ID
	})
	return devices
}
