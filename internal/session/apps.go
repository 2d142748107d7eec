package session

import (
	"context"
	"errors"
	"fmt"
)

// AppListResult is the installed-app listing for one device.
// Supported is false when the device does not expose app listing.
type AppListResult struct {
	DeviceID  string    `json:"device_id"`
	Apps      []AppInfo `json:"apps"`
	Supported bool      `json:"supported"`
}

// Apps lists and launches apps on devices.
type Apps struct {
	pool   *Pool
	logger Logger
}

// NewApps creates an app controller that acquires connections from pool.
func NewApps(pool *Pool) *Apps {
	return &Apps{pool: pool, logger: noopLogger{}}
}

// SetLogger sets the logger for the app controller.
func (a *Apps) SetLogger(logger Logger) {
	a.logger = logger
}

// List returns the apps installed on device id. A device without the
// app-list feature yields an empty, unsupported result rather than an error.
func (a *Apps) List(ctx context.Context, id string) (*AppListResult, error) {
	h, err := a.pool.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &AppListResult{DeviceID: id, Apps: []AppInfo{}}
	if !h.Features().IsAvailable(FeatureAppList) {
		return result, nil
	}

	apps, err := h.AppList(ctx)
	if err != nil {
		if errors.Is(err, ErrOperationUnsupported) {
			return result, nil
		}
		a.logger.Error("failed to list apps", "device_id", id, "error", err)
		return nil, fmt.Errorf("%w: app_list: %w", ErrCommandFailed, err)
	}

	result.Supported = true
	if apps != nil {
		result.Apps = apps
	}
	return result, nil
}

// Launch starts appID on device id.
func (a *Apps) Launch(ctx context.Context, id, appID string) error {
	h, err := a.pool.Acquire(ctx, id)
	if err != nil {
		return err
	}

	if !h.Features().IsAvailable(FeatureLaunchApp) {
		return fmt.Errorf("%w: launch_app", ErrCommandUnsupported)
	}

	if err := h.LaunchApp(ctx, appID); err != nil {
		if errors.Is(err, ErrOperationUnsupported) {
			return fmt.Errorf("%w: launch_app", ErrCommandUnsupported)
		}
		a.logger.Error("failed to launch app", "device_id", id, "app_id", appID, "error", err)
		return fmt.Errorf("%w: launch_app %s: %w", ErrCommandFailed, appID, err)
	}

	a.logger.Info("app launched", "device_id", id, "app_id", appID)
	return nil
}
