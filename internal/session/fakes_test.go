package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errFake = errors.New("fake failure")

// fakeDiscovery is a test DiscoveryProvider returning a configurable result.
type fakeDiscovery struct {
	mu      sync.Mutex
	devices []DeviceDescriptor
	err     error
	scans   int
}

func (f *fakeDiscovery) Scan(_ context.Context, _ time.Duration) ([]DeviceDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]DeviceDescriptor, len(f.devices))
	copy(out, f.devices)
	return out, nil
}

func (f *fakeDiscovery) set(devices ...DeviceDescriptor) {
	f.mu.Lock()
	f.devices = devices
	f.mu.Unlock()
}

func (f *fakeDiscovery) scanCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scans
}

// fakeHandle is a test Handle that records calls.
type fakeHandle struct {
	mu         sync.Mutex
	id         string
	probeErr   error
	closes     int
	closePanic bool
	features   FeatureSet
	sent       []Op
	sendErr    error
	playing    *PlaybackState
	playingErr error
	app        *AppInfo
	appErr     error
	apps       []AppInfo
	appsErr    error
	launched   []string
	launchErr  error
	info       HardwareInfo
}

func (h *fakeHandle) Probe(ctx context.Context) (HardwareInfo, error) {
	if err := ctx.Err(); err != nil {
		return HardwareInfo{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.info, h.probeErr
}

func (h *fakeHandle) Close() {
	h.mu.Lock()
	h.closes++
	p := h.closePanic
	h.mu.Unlock()
	if p {
		panic("close exploded")
	}
}

func (h *fakeHandle) closeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

func (h *fakeHandle) setProbeErr(err error) {
	h.mu.Lock()
	h.probeErr = err
	h.mu.Unlock()
}

func (h *fakeHandle) Features() FeatureSet { return h.features }

func (h *fakeHandle) SendCommand(_ context.Context, op Op) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sendErr != nil {
		return h.sendErr
	}
	h.sent = append(h.sent, op)
	return nil
}

func (h *fakeHandle) Playing(context.Context) (*PlaybackState, error) {
	return h.playing, h.playingErr
}

func (h *fakeHandle) App(context.Context) (*AppInfo, error) {
	return h.app, h.appErr
}

func (h *fakeHandle) AppList(context.Context) ([]AppInfo, error) {
	return h.apps, h.appsErr
}

func (h *fakeHandle) LaunchApp(_ context.Context, appID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.launchErr != nil {
		return h.launchErr
	}
	h.launched = append(h.launched, appID)
	return nil
}

// fakePairingHandle is a test PairingHandle.
type fakePairingHandle struct {
	mu        sync.Mutex
	beginErr  error
	pinErr    error
	finishErr error
	paired    bool
	creds     string
	pin       string
	closes    int
}

func (p *fakePairingHandle) Begin(context.Context) error { return p.beginErr }

func (p *fakePairingHandle) SubmitPIN(_ context.Context, pin string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pinErr != nil {
		return p.pinErr
	}
	p.pin = pin
	return nil
}

func (p *fakePairingHandle) Finish(context.Context) error { return p.finishErr }
func (p *fakePairingHandle) HasPaired() bool             { return p.paired }
func (p *fakePairingHandle) Credentials() string         { return p.creds }

func (p *fakePairingHandle) Close() {
	p.mu.Lock()
	p.closes++
	p.mu.Unlock()
}

func (p *fakePairingHandle) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

// fakeLink is a test LinkProvider. newHandle builds the handle for each
// connect; pairings are served from the pair queue.
type fakeLink struct {
	mu          sync.Mutex
	connectErr  error
	connects    map[string]int
	handles     []*fakeHandle
	newHandle   func(id string) *fakeHandle
	connectHook func(id string)

	pairErr  error
	pairings []*fakePairingHandle
	pairs    int
}

func newFakeLink() *fakeLink {
	return &fakeLink{connects: make(map[string]int)}
}

func (l *fakeLink) Connect(_ context.Context, desc DeviceDescriptor) (Handle, error) {
	if l.connectHook != nil {
		l.connectHook(desc.ID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.connects[desc.ID]++
	if l.connectErr != nil {
		return nil, l.connectErr
	}

	var h *fakeHandle
	if l.newHandle != nil {
		h = l.newHandle(desc.ID)
	} else {
		h = &fakeHandle{id: desc.ID, features: FeatureSet{}}
	}
	l.handles = append(l.handles, h)
	return h, nil
}

func (l *fakeLink) Pair(_ context.Context, _ DeviceDescriptor, _ ProtocolChoice) (PairingHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pairErr != nil {
		return nil, l.pairErr
	}
	p := &fakePairingHandle{paired: true, creds: "creds"}
	if l.pairs < len(l.pairings) {
		p = l.pairings[l.pairs]
	}
	l.pairs++
	return p, nil
}

func (l *fakeLink) connectCount(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connects[id]
}

func (l *fakeLink) lastHandle() *fakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.handles) == 0 {
		return nil
	}
	return l.handles[len(l.handles)-1]
}

// eventRecorder collects emitted events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Observe(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *eventRecorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func tv(id, name string) DeviceDescriptor {
	return DeviceDescriptor{ID: id, Name: name, Address: "10.0.0." + id}
}

// newTestPool returns a pool over a registry already populated with devices.
func newTestPool(t testing.TB, devices ...DeviceDescriptor) (*Pool, *fakeDiscovery, *fakeLink) {
	t.Helper()
	disc := &fakeDiscovery{devices: devices}
	reg := NewRegistry(disc, time.Second)
	if _, err := reg.Rescan(context.Background()); err != nil {
		t.Fatalf("Rescan() error = %v", err)
	}
	link := newFakeLink()
	return NewPool(reg, link), disc, link
}
