package atv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-remote/internal/session"
)

// closeTimeout bounds the best-effort close request sent when a handle is released.
const closeTimeout = 2 * time.Second

// Linker implements session.LinkProvider on top of the bridge.
type Linker struct {
	client   *Client
	protocol session.ProtocolChoice
	logger   Logger
}

// NewLinker creates a link provider. protocol is the protocol the bridge
// should prefer for control connections.
func NewLinker(client *Client, protocol session.ProtocolChoice) *Linker {
	return &Linker{client: client, protocol: protocol, logger: client.logger}
}

// Connect asks the bridge to open a control connection to desc.
func (l *Linker) Connect(ctx context.Context, desc session.DeviceDescriptor) (session.Handle, error) {
	params := map[string]any{
		"address":  desc.Address,
		"name":     desc.Name,
		"protocol": string(l.protocol),
	}

	var data connectData
	if err := l.client.Request(ctx, ActionConnect, desc.ID, params, 0, &data); err != nil {
		return nil, err
	}
	if data.ConnectionID == "" {
		return nil, fmt.Errorf("%w: connect: missing connection_id", ErrInvalidResponse)
	}

	return &handle{
		client:       l.client,
		deviceID:     desc.ID,
		connectionID: data.ConnectionID,
		features:     parseFeatures(data.Features),
		logger:       l.logger,
	}, nil
}

// Pair creates a pairing handle for desc. Nothing is sent until Begin.
func (l *Linker) Pair(_ context.Context, desc session.DeviceDescriptor, protocol session.ProtocolChoice) (session.PairingHandle, error) {
	if !l.client.mqtt.IsConnected() {
		return nil, ErrNotConnected
	}
	return &pairingHandle{
		client:   l.client,
		deviceID: desc.ID,
		address:  desc.Address,
		protocol: protocol,
		logger:   l.logger,
	}, nil
}

// parseFeatures converts the bridge's feature map. Unrecognised states are
// treated as unknown.
func parseFeatures(raw map[string]string) session.FeatureSet {
	fs := make(session.FeatureSet, len(raw))
	for name, state := range raw {
		switch st := session.FeatureState(state); st {
		case session.FeatureAvailable, session.FeatureUnavailable, session.FeatureUnsupported:
			fs[session.Feature(name)] = st
		default:
			fs[session.Feature(name)] = session.FeatureUnknown
		}
	}
	return fs
}

// handle is a bridge-side control connection.
type handle struct {
	client       *Client
	deviceID     string
	connectionID string
	features     session.FeatureSet
	logger       Logger

	closeOnce sync.Once
	closed    bool
	closedMu  sync.RWMutex
}

func (h *handle) params(extra map[string]any) map[string]any {
	p := map[string]any{"connection_id": h.connectionID}
	for k, v := range extra {
		p[k] = v
	}
	return p
}

func (h *handle) request(ctx context.Context, action string, extra map[string]any, out any) error {
	h.closedMu.RLock()
	closed := h.closed
	h.closedMu.RUnlock()
	if closed {
		return ErrHandleClosed
	}
	return h.client.Request(ctx, action, h.deviceID, h.params(extra), 0, out)
}

// Probe implements session.Handle.
func (h *handle) Probe(ctx context.Context) (session.HardwareInfo, error) {
	var data probeData
	if err := h.request(ctx, ActionProbe, nil, &data); err != nil {
		if IsUnknownConnection(err) {
			h.logger.Debug("bridge no longer knows connection", "device_id", h.deviceID, "connection_id", h.connectionID)
		}
		return session.HardwareInfo{}, err
	}
	return session.HardwareInfo{Model: data.Model, OSVersion: data.OSVersion}, nil
}

// Close implements session.Handle. The bridge is told to drop the
// connection; failures are logged only.
func (h *handle) Close() {
	h.closeOnce.Do(func() {
		h.closedMu.Lock()
		h.closed = true
		h.closedMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		err := h.client.Request(ctx, ActionClose, h.deviceID, h.params(nil), closeTimeout, nil)
		if err != nil {
			h.logger.Warn("failed to close bridge connection", "device_id", h.deviceID, "error", err)
		}
	})
}

// Features implements session.Handle.
func (h *handle) Features() session.FeatureSet {
	return h.features
}

// SendCommand implements session.Handle.
func (h *handle) SendCommand(ctx context.Context, op session.Op) error {
	return h.request(ctx, ActionCommand, map[string]any{"command": string(op)}, nil)
}

// Playing implements session.Handle.
func (h *handle) Playing(ctx context.Context) (*session.PlaybackState, error) {
	var data playingData
	if err := h.request(ctx, ActionPlaying, nil, &data); err != nil {
		return nil, err
	}
	return &session.PlaybackState{
		Title:       data.Title,
		Artist:      data.Artist,
		Album:       data.Album,
		Genre:       data.Genre,
		MediaType:   data.MediaType,
		DeviceState: data.DeviceState,
		Position:    data.Position,
		TotalTime:   data.TotalTime,
		Repeat:      data.Repeat,
		Shuffle:     data.Shuffle,
	}, nil
}

// App implements session.Handle.
func (h *handle) App(ctx context.Context) (*session.AppInfo, error) {
	var data appResponse
	if err := h.request(ctx, ActionApp, nil, &data); err != nil {
		return nil, err
	}
	if data.App == nil {
		return nil, nil
	}
	return &session.AppInfo{ID: data.App.ID, Name: data.App.Name}, nil
}

// AppList implements session.Handle.
func (h *handle) AppList(ctx context.Context) ([]session.AppInfo, error) {
	var data appListData
	if err := h.request(ctx, ActionAppList, nil, &data); err != nil {
		return nil, err
	}
	apps := make([]session.AppInfo, len(data.Apps))
	for i, a := range data.Apps {
		apps[i] = session.AppInfo{ID: a.ID, Name: a.Name}
	}
	return apps, nil
}

// LaunchApp implements session.Handle.
func (h *handle) LaunchApp(ctx context.Context, appID string) error {
	return h.request(ctx, ActionLaunchApp, map[string]any{"app_id": appID}, nil)
}

// pairingHandle drives one pairing handshake on the bridge.
type pairingHandle struct {
	client   *Client
	deviceID string
	address  string
	protocol session.ProtocolChoice
	logger   Logger

	mu          sync.Mutex
	pairingID   string
	paired      bool
	credentials string
	closed      bool
}

func (p *pairingHandle) params(extra map[string]any) map[string]any {
	p.mu.Lock()
	params := map[string]any{"pairing_id": p.pairingID}
	p.mu.Unlock()
	for k, v := range extra {
		params[k] = v
	}
	return params
}

// Begin implements session.PairingHandle.
func (p *pairingHandle) Begin(ctx context.Context) error {
	var data struct {
		PairingID string `json:"pairing_id"`
	}
	params := map[string]any{"address": p.address, "protocol": string(p.protocol)}
	if err := p.client.Request(ctx, ActionPairBegin, p.deviceID, params, 0, &data); err != nil {
		return err
	}
	if data.PairingID == "" {
		return fmt.Errorf("%w: pair_begin: missing pairing_id", ErrInvalidResponse)
	}

	p.mu.Lock()
	p.pairingID = data.PairingID
	p.mu.Unlock()
	return nil
}

// SubmitPIN implements session.PairingHandle.
func (p *pairingHandle) SubmitPIN(ctx context.Context, pin string) error {
	return p.client.Request(ctx, ActionPairPIN, p.deviceID, p.params(map[string]any{"pin": pin}), 0, nil)
}

// Finish implements session.PairingHandle.
func (p *pairingHandle) Finish(ctx context.Context) error {
	var data pairFinishData
	if err := p.client.Request(ctx, ActionPairFinish, p.deviceID, p.params(nil), 0, &data); err != nil {
		return err
	}

	p.mu.Lock()
	p.paired = data.Paired
	p.credentials = data.Credentials
	p.mu.Unlock()
	return nil
}

// HasPaired implements session.PairingHandle.
func (p *pairingHandle) HasPaired() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paired && p.credentials != ""
}

// Credentials implements session.PairingHandle.
func (p *pairingHandle) Credentials() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.credentials
}

// Close implements session.PairingHandle.
func (p *pairingHandle) Close() {
	p.mu.Lock()
	if p.closed || p.pairingID == "" {
		p.closed = true
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := p.client.Request(ctx, ActionPairClose, p.deviceID, p.params(nil), closeTimeout, nil); err != nil {
		p.logger.Warn("failed to close pairing", "device_id", p.deviceID, "error", err)
	}
}
