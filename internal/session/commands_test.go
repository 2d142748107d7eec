package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
)

func TestCommands_Catalog(t *testing.T) {
	names := Commands()
	if len(names) != 18 {
		t.Errorf("len(Commands()) = %d, want 18", len(names))
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("Commands() not sorted: %v", names)
	}
	for _, name := range names {
		entry := catalog[name]
		if string(entry.op) != name {
			t.Errorf("catalog[%q].op = %q", name, entry.op)
		}
		if string(entry.feature) != name {
			t.Errorf("catalog[%q].feature = %q", name, entry.feature)
		}
	}
}

func TestDispatcher_UnknownCommandDoesNotConnect(t *testing.T) {
	pool, disc, link := newTestPool(t, tv("1", "Living Room"))
	d := NewDispatcher(pool)
	before := disc.scanCount()

	err := d.Send(context.Background(), "1", "unknown_cmd")
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("Send() error = %v, want ErrUnknownCommand", err)
	}
	if !strings.Contains(err.Error(), "play_pause") {
		t.Errorf("error %q does not list valid commands", err)
	}
	if link.connectCount("1") != 0 {
		t.Error("connection attempted for unknown command")
	}
	if disc.scanCount() != before {
		t.Error("scan attempted for unknown command")
	}
}

func TestDispatcher_Send(t *testing.T) {
	pool, _, link := newTestPool(t, tv("1", "Living Room"))
	d := NewDispatcher(pool)

	if err := d.Send(context.Background(), "1", "play_pause"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	h := link.lastHandle()
	if len(h.sent) != 1 || h.sent[0] != OpPlayPause {
		t.Errorf("sent = %v, want [play_pause]", h.sent)
	}
}

func TestDispatcher_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handle  *fakeHandle
		wantErr error
	}{
		{
			name:    "feature unsupported",
			handle:  &fakeHandle{features: FeatureSet{FeatureTopMenu: FeatureUnsupported}},
			wantErr: ErrCommandUnsupported,
		},
		{
			name:    "provider lacks operation",
			handle:  &fakeHandle{features: FeatureSet{}, sendErr: fmt.Errorf("no top_menu: %w", ErrOperationUnsupported)},
			wantErr: ErrCommandUnsupported,
		},
		{
			name:    "device rejects",
			handle:  &fakeHandle{features: FeatureSet{}, sendErr: errFake},
			wantErr: ErrCommandFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, _, link := newTestPool(t, tv("1", "Living Room"))
			link.newHandle = func(string) *fakeHandle { return tt.handle }
			d := NewDispatcher(pool)

			err := d.Send(context.Background(), "1", "top_menu")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Send() error = %v, want %v", err, tt.wantErr)
			}
			if len(tt.handle.sent) != 0 {
				t.Errorf("sent = %v, want none", tt.handle.sent)
			}
		})
	}
}

func TestDispatcher_AvailabilityUnknownStillSends(t *testing.T) {
	pool, _, link := newTestPool(t, tv("1", "Living Room"))
	link.newHandle = func(id string) *fakeHandle {
		return &fakeHandle{id: id, features: FeatureSet{FeatureVolumeUp: FeatureUnavailable}}
	}
	d := NewDispatcher(pool)

	if err := d.Send(context.Background(), "1", "volume_up"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
}

func TestDispatcher_ConnectionErrorsPropagate(t *testing.T) {
	pool, _, link := newTestPool(t, tv("1", "Living Room"))
	link.connectErr = errFake
	d := NewDispatcher(pool)

	if err := d.Send(context.Background(), "1", "up"); !errors.Is(err, ErrConnection) {
		t.Errorf("Send() error = %v, want ErrConnection", err)
	}
	if err := d.Send(context.Background(), "ghost", "up"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Send(ghost) error = %v, want ErrDeviceNotFound", err)
	}
}
