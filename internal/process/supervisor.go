package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// State is the lifecycle state of a supervised process.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateBackoff  State = "backoff"
	StateFailed   State = "failed"
)

// maxLineSize caps a single captured output line.
const maxLineSize = 64 * 1024

// Defaults applied by NewSupervisor to zero-valued Options.
const (
	DefaultRestartDelay        = 2 * time.Second
	DefaultMaxRestartDelay     = time.Minute
	DefaultStableThreshold     = 2 * time.Minute
	DefaultGracefulTimeout     = 10 * time.Second
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultMaxHealthFailures   = 3

	healthCheckTimeout = 5 * time.Second
	killWait           = 5 * time.Second
)

// Options configures a supervised process.
type Options struct {
	// Name identifies the process in logs.
	Name string

	// Binary is the executable path or a name resolved through PATH.
	Binary string

	Args []string

	// Env is appended to the parent environment.
	Env []string

	WorkDir string

	// RestartOnFailure restarts the process when it exits without Stop.
	RestartOnFailure bool

	// RestartDelay is the first restart delay. It doubles on each
	// consecutive failure up to MaxRestartDelay.
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration

	// StableThreshold is how long a run must last before the restart
	// delay and attempt counter reset.
	StableThreshold time.Duration

	// MaxRestartAttempts limits consecutive restarts. 0 means unlimited.
	MaxRestartAttempts int

	// GracefulTimeout is how long Stop waits after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// HealthCheck, when set, runs every HealthCheckInterval while the
	// process is up. MaxHealthFailures consecutive failures kill it.
	HealthCheck         func(ctx context.Context) error
	HealthCheckInterval time.Duration
	MaxHealthFailures   int

	// OnStateChange is called after every state transition.
	OnStateChange func(State)
}

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Supervisor runs one child process and restarts it when it dies.
type Supervisor struct {
	opts   Options
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	state         State
	restarts      int
	lastErr       error
	startedAt     time.Time
	stopRequested bool
	stopCh        chan struct{}
	done          chan struct{}
}

// NewSupervisor returns a stopped supervisor with defaults applied.
func NewSupervisor(opts Options) *Supervisor {
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	if opts.MaxRestartDelay < opts.RestartDelay {
		opts.MaxRestartDelay = max(DefaultMaxRestartDelay, opts.RestartDelay)
	}
	if opts.StableThreshold <= 0 {
		opts.StableThreshold = DefaultStableThreshold
	}
	if opts.GracefulTimeout <= 0 {
		opts.GracefulTimeout = DefaultGracefulTimeout
	}
	if opts.HealthCheckInterval <= 0 {
		opts.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if opts.MaxHealthFailures <= 0 {
		opts.MaxHealthFailures = DefaultMaxHealthFailures
	}

	return &Supervisor{
		opts:   opts,
		logger: noopLogger{},
		state:  StateStopped,
	}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// Start launches the process and the goroutine that watches it.
// A binary that cannot be started is reported immediately and not retried.
func (s *Supervisor) Start(ctx context.Context) error {
	if s.opts.Binary == "" {
		return fmt.Errorf("%w: %s has no binary", ErrInvalidOptions, s.opts.Name)
	}

	s.mu.Lock()
	if s.state != StateStopped && s.state != StateFailed {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, s.opts.Name)
	}
	s.stopRequested = false
	s.restarts = 0
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.state = StateStarting
	s.mu.Unlock()
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(StateStarting)
	}

	if err := s.spawn(ctx); err != nil {
		s.mu.Lock()
		s.lastErr = err
		close(s.done)
		s.mu.Unlock()
		s.setState(StateFailed)
		return err
	}

	go s.watch(ctx)
	return nil
}

func (s *Supervisor) spawn(ctx context.Context) error {
	//nolint:gosec // binary comes from operator configuration
	cmd := exec.CommandContext(ctx, s.opts.Binary, s.opts.Args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// CommandContext kills only the leader; signal the whole group instead.
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	if len(s.opts.Env) > 0 {
		cmd.Env = append(os.Environ(), s.opts.Env...)
	}
	cmd.Dir = s.opts.WorkDir

	cmd.Stdout = &lineLogger{sup: s, stream: "stdout"}
	cmd.Stderr = &lineLogger{sup: s, stream: "stderr"}
	// Grandchildren holding the output pipes must not block Wait forever.
	cmd.WaitDelay = s.opts.GracefulTimeout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStartFailed, s.opts.Name, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.startedAt = time.Now()
	s.mu.Unlock()
	s.setState(StateRunning)

	s.logger.Info("process started", "name", s.opts.Name, "pid", cmd.Process.Pid, "args", s.opts.Args)
	return nil
}

// lineLogger logs a child's output one line at a time.
type lineLogger struct {
	sup    *Supervisor
	stream string
	buf    []byte
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.buf = append(l.buf, p...)
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}
		l.emit(l.buf[:i])
		l.buf = l.buf[i+1:]
	}
	if len(l.buf) >= maxLineSize {
		l.emit(l.buf)
		l.buf = nil
	}
	return len(p), nil
}

func (l *lineLogger) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}
	name := l.sup.opts.Name
	if l.stream == "stderr" {
		l.sup.logger.Info("process output", "name", name, "stream", l.stream, "line", string(line))
		return
	}
	l.sup.logger.Debug("process output", "name", name, "stream", l.stream, "line", string(line))
}

// wait blocks until the process exits. Closing stopCh terminates it, as
// do MaxHealthFailures consecutive failed health checks.
func (s *Supervisor) wait(ctx context.Context, cmd *exec.Cmd, stopCh <-chan struct{}) error {
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	var tick <-chan time.Time
	if s.opts.HealthCheck != nil {
		ticker := time.NewTicker(s.opts.HealthCheckInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	failures := 0
	for {
		select {
		case err := <-exited:
			return err
		case <-ctx.Done():
			return <-exited
		case <-stopCh:
			return s.terminate(cmd, exited)
		case <-tick:
			checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			err := s.opts.HealthCheck(checkCtx)
			cancel()

			if err == nil {
				if failures > 0 {
					s.logger.Info("health check recovered", "name", s.opts.Name, "previous_failures", failures)
				}
				failures = 0
				continue
			}

			failures++
			s.logger.Warn("health check failed", "name", s.opts.Name, "error", err, "consecutive_failures", failures)
			if failures < s.opts.MaxHealthFailures {
				continue
			}

			s.logger.Error("process unhealthy, killing", "name", s.opts.Name, "failures", failures)
			//nolint:errcheck // group may already be gone
			syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			select {
			case <-exited:
			case <-time.After(killWait):
			}
			return fmt.Errorf("%w: %d consecutive failures: %w", ErrUnhealthy, failures, err)
		}
	}
}

// terminate sends SIGTERM to the process group, escalating to SIGKILL
// after GracefulTimeout.
func (s *Supervisor) terminate(cmd *exec.Cmd, exited <-chan error) error {
	pid := cmd.Process.Pid
	s.logger.Info("stopping process", "name", s.opts.Name, "pid", pid)
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		s.logger.Warn("SIGTERM failed", "name", s.opts.Name, "error", err)
	}

	select {
	case err := <-exited:
		return err
	case <-time.After(s.opts.GracefulTimeout):
		s.logger.Warn("graceful stop timed out, sending SIGKILL", "name", s.opts.Name, "timeout", s.opts.GracefulTimeout)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		s.logger.Error("SIGKILL failed", "name", s.opts.Name, "error", err)
	}
	return <-exited
}

// watch restarts the process until Stop, context cancellation, or the
// restart limit.
func (s *Supervisor) watch(ctx context.Context) {
	s.mu.RLock()
	done, stopCh := s.done, s.stopCh
	s.mu.RUnlock()
	defer close(done)

	delay := s.opts.RestartDelay
	for {
		s.mu.RLock()
		cmd := s.cmd
		startedAt := s.startedAt
		s.mu.RUnlock()

		err := s.wait(ctx, cmd, stopCh)

		s.mu.Lock()
		stopping := s.stopRequested
		s.mu.Unlock()
		if stopping || ctx.Err() != nil {
			s.logger.Info("process stopped", "name", s.opts.Name)
			s.setState(StateStopped)
			return
		}

		if err == nil {
			err = ErrExited
		}
		s.logger.Warn("process exited unexpectedly", "name", s.opts.Name, "error", err, "uptime", time.Since(startedAt))

		s.mu.Lock()
		s.lastErr = err
		if time.Since(startedAt) >= s.opts.StableThreshold {
			s.restarts = 0
			delay = s.opts.RestartDelay
		}
		s.restarts++
		attempt := s.restarts
		s.mu.Unlock()

		if !s.opts.RestartOnFailure {
			s.setState(StateFailed)
			return
		}
		if s.opts.MaxRestartAttempts > 0 && attempt > s.opts.MaxRestartAttempts {
			s.logger.Error("restart limit reached", "name", s.opts.Name, "attempts", attempt-1)
			s.setState(StateFailed)
			return
		}

		s.setState(StateBackoff)
		s.logger.Info("restarting process", "name", s.opts.Name, "attempt", attempt, "delay", delay)

		for {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				s.setState(StateStopped)
				return
			case <-stopCh:
				timer.Stop()
				s.setState(StateStopped)
				return
			case <-timer.C:
			}
			delay = min(delay*2, s.opts.MaxRestartDelay)

			spawnErr := s.spawn(ctx)
			if spawnErr == nil {
				break
			}
			s.logger.Error("restart failed", "name", s.opts.Name, "error", spawnErr)
			s.mu.Lock()
			s.lastErr = spawnErr
			s.restarts++
			attempt = s.restarts
			s.mu.Unlock()
			if s.opts.MaxRestartAttempts > 0 && attempt > s.opts.MaxRestartAttempts {
				s.setState(StateFailed)
				return
			}
		}
	}
}

// Stop terminates the process and waits for the watcher to exit. SIGTERM
// goes to the whole process group and SIGKILL follows after
// GracefulTimeout.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	done := s.done
	if !s.stopRequested && s.stopCh != nil {
		close(s.stopCh)
	}
	s.stopRequested = true
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	<-done
	return nil
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.mu.Unlock()

	if changed && s.opts.OnStateChange != nil {
		s.opts.OnStateChange(state)
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsRunning reports whether the process is up.
func (s *Supervisor) IsRunning() bool {
	return s.State() == StateRunning
}

// LastError returns the error from the most recent unexpected exit.
func (s *Supervisor) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Done is closed when the watcher has exited. It is nil before Start.
func (s *Supervisor) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// Stats is a point-in-time view of a supervised process.
type Stats struct {
	Name      string  `json:"name"`
	State     State   `json:"state"`
	PID       int     `json:"pid,omitempty"`
	UptimeSec float64 `json:"uptime_seconds,omitempty"`
	Restarts  int     `json:"restarts"`
	LastError string  `json:"last_error,omitempty"`
}

// Stats returns the current statistics.
func (s *Supervisor) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Name:     s.opts.Name,
		State:    s.state,
		Restarts: s.restarts,
	}
	if s.state == StateRunning && s.cmd != nil && s.cmd.Process != nil {
		st.PID = s.cmd.Process.Pid
		st.UptimeSec = time.Since(s.startedAt).Seconds()
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
