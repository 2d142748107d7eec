package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Op is a remote-control operation understood by link providers.
type Op string

// Remote-control operations.
const (
	OpUp           Op = "up"
	OpDown         Op = "down"
	OpLeft         Op = "left"
	OpRight        Op = "right"
	OpSelect       Op = "select"
	OpMenu         Op = "menu"
	OpHome         Op = "home"
	OpTopMenu      Op = "top_menu"
	OpPlay         Op = "play"
	OpPause        Op = "pause"
	OpPlayPause    Op = "play_pause"
	OpStop         Op = "stop"
	OpNext         Op = "next"
	OpPrevious     Op = "previous"
	OpSkipForward  Op = "skip_forward"
	OpSkipBackward Op = "skip_backward"
	OpVolumeUp     Op = "volume_up"
	OpVolumeDown   Op = "volume_down"
)

// catalogEntry binds a command name to the operation it performs and the
// feature the device must not report as unsupported.
type catalogEntry struct {
	op      Op
	feature Feature
}

// catalog is the static set of remote commands. Never mutated.
var catalog = map[string]catalogEntry{
	"up":            {OpUp, FeatureUp},
	"down":          {OpDown, FeatureDown},
	"left":          {OpLeft, FeatureLeft},
	"right":         {OpRight, FeatureRight},
	"select":        {OpSelect, FeatureSelect},
	"menu":          {OpMenu, FeatureMenu},
	"home":          {OpHome, FeatureHome},
	"top_menu":      {OpTopMenu, FeatureTopMenu},
	"play":          {OpPlay, FeaturePlay},
	"pause":         {OpPause, FeaturePause},
	"play_pause":    {OpPlayPause, FeaturePlayPause},
	"stop":          {OpStop, FeatureStop},
	"next":          {OpNext, FeatureNext},
	"previous":      {OpPrevious, FeaturePrevious},
	"skip_forward":  {OpSkipForward, FeatureSkipForward},
	"skip_backward": {OpSkipBackward, FeatureSkipBackward},
	"volume_up":     {OpVolumeUp, FeatureVolumeUp},
	"volume_down":   {OpVolumeDown, FeatureVolumeDown},
}

// Commands returns the names of all remote commands, sorted.
func Commands() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsCommand reports whether name is in the command catalog.
func IsCommand(name string) bool {
	_, ok := catalog[name]
	return ok
}

// Dispatcher sends named remote commands to devices.
type Dispatcher struct {
	pool   *Pool
	logger Logger
}

// NewDispatcher creates a dispatcher that acquires connections from pool.
func NewDispatcher(pool *Pool) *Dispatcher {
	return &Dispatcher{pool: pool, logger: noopLogger{}}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Send performs the named command on device id.
//
// Unknown names fail with ErrUnknownCommand before any connection is made.
// Failures are never retried.
func (d *Dispatcher) Send(ctx context.Context, id, name string) error {
	entry, ok := catalog[name]
	if !ok {
		return fmt.Errorf("%w: %q (valid: %s)", ErrUnknownCommand, name, strings.Join(Commands(), ", "))
	}

	h, err := d.pool.Acquire(ctx, id)
	if err != nil {
		return err
	}

	if h.Features().State(entry.feature) == FeatureUnsupported {
		return fmt.Errorf("%w: %s", ErrCommandUnsupported, name)
	}

	start := time.Now()
	if err := h.SendCommand(ctx, entry.op); err != nil {
		if errors.Is(err, ErrOperationUnsupported) {
			return fmt.Errorf("%w: %s", ErrCommandUnsupported, name)
		}
		d.logger.Error("command failed", "device_id", id, "command", name, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrCommandFailed, name, err)
	}

	d.logger.Debug("command sent",
		"device_id", id,
		"command", name,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
