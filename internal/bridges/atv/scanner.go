package atv

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-remote/internal/session"
)

// Scanner implements session.DiscoveryProvider by asking the bridge to scan.
type Scanner struct {
	client *Client
}

// NewScanner creates a discovery provider backed by client.
func NewScanner(client *Client) *Scanner {
	return &Scanner{client: client}
}

// Scan asks the bridge for every device that answers within timeout.
// The request itself is allowed the scan timeout plus the client timeout.
func (s *Scanner) Scan(ctx context.Context, timeout time.Duration) ([]session.DeviceDescriptor, error) {
	params := map[string]any{"timeout_seconds": timeout.Seconds()}

	var data scanData
	if err := s.client.Request(ctx, ActionScan, "", params, timeout+s.client.Timeout(), &data); err != nil {
		return nil, err
	}

	devices := make([]session.DeviceDescriptor, 0, len(data.Devices))
	for _, d := range data.Devices {
		if d.ID == "" {
			continue
		}
		devices = append(devices, toDescriptor(d))
	}
	return devices, nil
}

func toDescriptor(d deviceData) session.DeviceDescriptor {
	desc := session.DeviceDescriptor{
		ID:        d.ID,
		Name:      d.Name,
		Address:   d.Address,
		Model:     d.Model,
		OSVersion: d.OSVersion,
	}
	for _, s := range d.Services {
		desc.Services = append(desc.Services, session.ParseProtocol(s))
	}
	return desc
}
