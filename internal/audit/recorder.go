package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-remote/internal/session"
)

const (
	defaultQueueSize    = 256
	writeTimeout        = 5 * time.Second
	retentionInterval   = 24 * time.Hour
	sourceSessionEvents = "session"
)

// Actions recorded in the audit trail, keyed by session event type.
var actions = map[session.EventType]struct {
	action     string
	entityType string
}{
	session.EventDeviceConnected:    {"connect", "device"},
	session.EventDeviceDisconnected: {"disconnect", "device"},
	session.EventDevicesScanned:     {"scan", "registry"},
	session.EventCommandSent:        {"command", "device"},
	session.EventPairingStarted:     {"pair_start", "device"},
	session.EventPairingFinished:    {"pair_finish", "device"},
	session.EventAppLaunched:        {"launch_app", "device"},
}

// secretKeys are never copied from event details into the trail.
var secretKeys = map[string]bool{
	"credentials": true,
	"pin":         true,
}

// Logger is the subset of logging.Logger the recorder uses.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder is a session.Observer that writes control actions to a
// Repository from a background goroutine. Observe never blocks; events
// arriving while the queue is full are dropped and counted.
type Recorder struct {
	repo      Repository
	retention time.Duration
	queue     chan session.Event
	dropped   atomic.Int64
	logger    Logger

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRecorder starts a recorder. A positive retentionDays prunes older
// entries once a day.
func NewRecorder(repo Repository, retentionDays int, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	r := &Recorder{
		repo:      repo,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		queue:     make(chan session.Event, defaultQueueSize),
		logger:    logger,
		done:      make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Observe implements session.Observer.
func (r *Recorder) Observe(e session.Event) {
	if _, ok := actions[e.Type]; !ok {
		return
	}

	select {
	case <-r.done:
		return
	default:
	}

	select {
	case r.queue <- e:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close writes any queued events and stops the recorder.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}

func (r *Recorder) run() {
	defer r.wg.Done()

	var prune <-chan time.Time
	if r.retention > 0 {
		r.prune()
		ticker := time.NewTicker(retentionInterval)
		defer ticker.Stop()
		prune = ticker.C
	}

	for {
		select {
		case e := <-r.queue:
			r.write(e)
		case <-prune:
			r.prune()
		case <-r.done:
			for {
				select {
				case e := <-r.queue:
					r.write(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(e session.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	log := FromEvent(e)
	if err := r.repo.Create(ctx, &log); err != nil {
		r.logger.Warn("writing audit log failed", "action", log.Action, "entity_id", log.EntityID, "error", err)
	}
}

func (r *Recorder) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if _, err := r.repo.DeleteBefore(ctx, time.Now().Add(-r.retention)); err != nil {
		r.logger.Warn("pruning audit logs failed", "error", err)
	}
}

// FromEvent converts a session event to an audit entry.
func FromEvent(e session.Event) AuditLog {
	kind := actions[e.Type]

	var details map[string]any
	for k, v := range e.Details {
		if secretKeys[k] {
			continue
		}
		if details == nil {
			details = make(map[string]any, len(e.Details))
		}
		details[k] = v
	}

	return AuditLog{
		Action:     kind.action,
		EntityType: kind.entityType,
		EntityID:   e.DeviceID,
		Source:     sourceSessionEvents,
		Success:    e.Success,
		Error:      e.Error,
		DurationMS: e.Duration.Milliseconds(),
		Details:    details,
		CreatedAt:  e.Timestamp.UTC(),
	}
}
