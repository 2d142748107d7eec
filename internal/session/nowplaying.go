package session

import "context"

// deviceStateUnknown is reported when the device does not say what it is doing.
const deviceStateUnknown = "unknown"

// NowPlaying builds point-in-time snapshots of device playback.
type NowPlaying struct {
	pool   *Pool
	logger Logger
}

// NewNowPlaying creates an aggregator that acquires connections from pool.
func NewNowPlaying(pool *Pool) *NowPlaying {
	return &NowPlaying{pool: pool, logger: noopLogger{}}
}

// SetLogger sets the logger for the aggregator.
func (n *NowPlaying) SetLogger(logger Logger) {
	n.logger = logger
}

// Snapshot reports what device id is playing.
//
// The playback query and the running-app query are attempted independently.
// A failing query is logged and leaves its fields empty. The app query runs
// only when the device reports FeatureApp as available. Snapshot fails only
// when no connection can be acquired.
func (n *NowPlaying) Snapshot(ctx context.Context, id string) (*NowPlayingSnapshot, error) {
	h, err := n.pool.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}

	snap := &NowPlayingSnapshot{
		DeviceID:    id,
		DeviceState: deviceStateUnknown,
	}

	playing, err := h.Playing(ctx)
	switch {
	case err != nil:
		n.logger.Warn("failed to get playback state", "device_id", id, "error", err)
	case playing != nil:
		snap.Title = optional(playing.Title)
		snap.Artist = optional(playing.Artist)
		snap.Album = optional(playing.Album)
		snap.Genre = optional(playing.Genre)
		snap.MediaType = optional(playing.MediaType)
		if playing.DeviceState != "" {
			snap.DeviceState = playing.DeviceState
		}
		snap.Position = playing.Position
		snap.TotalTime = playing.TotalTime
		snap.Repeat = optional(playing.Repeat)
		snap.Shuffle = optional(playing.Shuffle)
	}

	if h.Features().IsAvailable(FeatureApp) {
		app, err := h.App(ctx)
		switch {
		case err != nil:
			n.logger.Warn("failed to get current app", "device_id", id, "error", err)
		case app != nil:
			snap.AppName = optional(app.Name)
			snap.AppID = optional(app.ID)
		}
	}

	return snap, nil
}
