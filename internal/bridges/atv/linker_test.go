package atv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-remote/internal/session"
)

// fakeBridge answers requests the way the media bridge does.
type fakeBridge struct {
	mu          sync.Mutex
	devices     []deviceData
	features    map[string]string
	unsupported map[string]bool
	pairedPIN   string
	closes      int
	nextConn    int
}

func (b *fakeBridge) respond(req RequestMessage) *ResponseMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch req.Action {
	case ActionScan:
		return ok(scanData{Devices: b.devices})
	case ActionConnect:
		b.nextConn++
		return ok(connectData{ConnectionID: "conn-" + req.DeviceID, Features: b.features})
	case ActionProbe:
		return ok(probeData{Model: "Gen4", OSVersion: "17.1"})
	case ActionClose:
		b.closes++
		return ok(nil)
	case ActionCommand:
		if b.unsupported[req.Parameters["command"].(string)] {
			return fail(ErrCodeUnsupported, "not available")
		}
		return ok(nil)
	case ActionPlaying:
		pos := 12
		return ok(playingData{Title: "Song", DeviceState: "playing", Position: &pos})
	case ActionApp:
		return ok(appResponse{App: &appData{ID: "com.example.tv", Name: "TV"}})
	case ActionAppList:
		return ok(appListData{Apps: []appData{{ID: "a", Name: "A"}}})
	case ActionLaunchApp:
		return ok(nil)
	case ActionPairBegin:
		return ok(map[string]string{"pairing_id": "pair-1"})
	case ActionPairPIN:
		if req.Parameters["pin"] != b.pairedPIN {
			return fail(ErrCodeProtocolError, "wrong pin")
		}
		return ok(nil)
	case ActionPairFinish:
		return ok(pairFinishData{Paired: true, Credentials: "creds-123"})
	case ActionPairClose:
		return ok(nil)
	}
	return fail(ErrCodeInvalidParameters, "unknown action")
}

func newTestLinker(t *testing.T, bridge *fakeBridge) (*Linker, *Scanner, *MockMQTTClient) {
	t.Helper()
	c, mock := newStartedClient(t, bridge.respond)
	return NewLinker(c, session.ProtocolCompanion), NewScanner(c), mock
}

func TestScanner_Scan(t *testing.T) {
	bridge := &fakeBridge{devices: []deviceData{
		{ID: "AA:BB", Name: "Living Room", Address: "10.0.0.5", Services: []string{"companion", "airplay"}},
		{Name: "no id"},
	}}
	_, scanner, mock := newTestLinker(t, bridge)

	devices, err := scanner.Scan(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("len(devices) = %d, want 1", len(devices))
	}
	d := devices[0]
	if d.ID != "AA:BB" || d.Address != "10.0.0.5" {
		t.Errorf("device = %+v", d)
	}
	if len(d.Services) != 2 || d.Services[1] != session.ProtocolAirPlay {
		t.Errorf("Services = %v, want [companion airplay]", d.Services)
	}
	if got := mock.lastRequest().Parameters["timeout_seconds"]; got != float64(1) {
		t.Errorf("timeout_seconds = %v, want 1", got)
	}
}

func TestLinker_ConnectAndControl(t *testing.T) {
	bridge := &fakeBridge{
		features: map[string]string{
			"play_pause": "available",
			"top_menu":   "unsupported",
			"app":        "available",
			"weird":      "sometimes",
		},
		unsupported: map[string]bool{"top_menu": true},
	}
	linker, _, mock := newTestLinker(t, bridge)
	ctx := context.Background()

	h, err := linker.Connect(ctx, session.DeviceDescriptor{ID: "dev-1", Name: "Living Room", Address: "10.0.0.5"})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	fs := h.Features()
	if !fs.IsAvailable(session.FeaturePlayPause) {
		t.Error("play_pause not available")
	}
	if fs.State(session.FeatureTopMenu) != session.FeatureUnsupported {
		t.Errorf("top_menu = %q, want unsupported", fs.State(session.FeatureTopMenu))
	}
	if fs.State("weird") != session.FeatureUnknown {
		t.Errorf("weird = %q, want unknown", fs.State("weird"))
	}

	info, err := h.Probe(ctx)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if info.Model != "Gen4" {
		t.Errorf("Model = %q, want Gen4", info.Model)
	}

	if err := h.SendCommand(ctx, session.OpPlayPause); err != nil {
		t.Errorf("SendCommand() error = %v", err)
	}
	if got := mock.lastRequest().Parameters["connection_id"]; got != "conn-dev-1" {
		t.Errorf("connection_id = %v, want conn-dev-1", got)
	}
	if err := h.SendCommand(ctx, session.OpTopMenu); !errors.Is(err, session.ErrOperationUnsupported) {
		t.Errorf("SendCommand(top_menu) error = %v, want ErrOperationUnsupported", err)
	}

	playing, err := h.Playing(ctx)
	if err != nil {
		t.Fatalf("Playing() error = %v", err)
	}
	if playing.Title != "Song" || playing.Position == nil || *playing.Position != 12 {
		t.Errorf("Playing() = %+v", playing)
	}

	app, err := h.App(ctx)
	if err != nil {
		t.Fatalf("App() error = %v", err)
	}
	if app == nil || app.Name != "TV" {
		t.Errorf("App() = %+v, want TV", app)
	}

	apps, err := h.AppList(ctx)
	if err != nil || len(apps) != 1 {
		t.Errorf("AppList() = %v, %v", apps, err)
	}
	if err := h.LaunchApp(ctx, "a"); err != nil {
		t.Errorf("LaunchApp() error = %v", err)
	}

	h.Close()
	h.Close()
	if bridge.closes != 1 {
		t.Errorf("bridge closes = %d, want 1", bridge.closes)
	}
	if err := h.SendCommand(ctx, session.OpPlay); !errors.Is(err, ErrHandleClosed) {
		t.Errorf("SendCommand() after Close error = %v, want ErrHandleClosed", err)
	}
}

func TestLinker_ConnectMissingConnectionID(t *testing.T) {
	c, _ := newStartedClient(t, func(req RequestMessage) *ResponseMessage {
		return ok(connectData{})
	})
	linker := NewLinker(c, session.ProtocolCompanion)

	_, err := linker.Connect(context.Background(), session.DeviceDescriptor{ID: "dev-1"})
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("Connect() error = %v, want ErrInvalidResponse", err)
	}
}

func TestLinker_PairingFlow(t *testing.T) {
	bridge := &fakeBridge{pairedPIN: "1234"}
	linker, _, mock := newTestLinker(t, bridge)
	ctx := context.Background()

	p, err := linker.Pair(ctx, session.DeviceDescriptor{ID: "dev-1", Address: "10.0.0.5"}, session.ProtocolAirPlay)
	if err != nil {
		t.Fatalf("Pair() error = %v", err)
	}
	if err := p.Begin(ctx); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if got := mock.lastRequest().Parameters["protocol"]; got != "airplay" {
		t.Errorf("protocol = %v, want airplay", got)
	}
	if err := p.SubmitPIN(ctx, "1234"); err != nil {
		t.Fatalf("SubmitPIN() error = %v", err)
	}
	if got := mock.lastRequest().Parameters["pairing_id"]; got != "pair-1" {
		t.Errorf("pairing_id = %v, want pair-1", got)
	}
	if err := p.Finish(ctx); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if !p.HasPaired() || p.Credentials() != "creds-123" {
		t.Errorf("HasPaired() = %v, Credentials() = %q", p.HasPaired(), p.Credentials())
	}

	p.Close()
	p.Close()
	want := []string{ActionPairBegin, ActionPairPIN, ActionPairFinish, ActionPairClose}
	got := mock.actions()
	if len(got) != len(want) {
		t.Fatalf("actions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("actions[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLinker_PairNotConnected(t *testing.T) {
	linker, _, mock := newTestLinker(t, &fakeBridge{})
	mock.mu.Lock()
	mock.connected = false
	mock.mu.Unlock()

	_, err := linker.Pair(context.Background(), session.DeviceDescriptor{ID: "dev-1"}, session.ProtocolCompanion)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Pair() error = %v, want ErrNotConnected", err)
	}
}

func TestLinker_WorksWithSessionManager(t *testing.T) {
	bridge := &fakeBridge{
		devices:  []deviceData{{ID: "dev-1", Name: "Living Room", Address: "10.0.0.5"}},
		features: map[string]string{"select": "available"},
	}
	linker, scanner, _ := newTestLinker(t, bridge)

	m, err := session.NewManager(session.Options{
		Discovery:   scanner,
		Link:        linker,
		ScanTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := m.SendCommand(ctx, "dev-1", "select"); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if h := m.Health(); h.DiscoveredDevices != 1 || h.ActiveConnections != 1 {
		t.Errorf("Health() = %v", h)
	}

	m.Close()
	if bridge.closes != 1 {
		t.Errorf("bridge closes = %d, want 1", bridge.closes)
	}
}
