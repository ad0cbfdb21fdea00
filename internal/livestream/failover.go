package livestream

import (
	"log/slog"
	"sync"
	"time"

	"livestream-orchestrator/internal/platform/metrics"

	"github.com/jonboulle/clockwork"
)

// DefaultFailoverGrace is how long a fatal error is given to recover on its
// own before the backup source is loaded.
const DefaultFailoverGrace = 1500 * time.Millisecond

// PhaseSwitcher is the side of the phase controller the supervisor drives.
type PhaseSwitcher interface {
	Phase() Phase
	UsingBackup() bool
	SwitchToBackup() bool
	SetPhase(Phase)
}

// FailoverOptions carries the collaborators of a FailoverSupervisor.
type FailoverOptions struct {
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Grace   time.Duration

	// OnChange is called whenever the failing-over flag flips, outside the
	// supervisor lock.
	OnChange func()
}

// FailoverSupervisor turns player error and state signals into source
// switches or terminal phases.
type FailoverSupervisor struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	log      *slog.Logger
	metrics  *metrics.Metrics
	onChange func()
	grace    time.Duration
	cfg      Config
	phase    PhaseSwitcher

	failingOver bool
	timer       clockwork.Timer
	gen         uint64
	closed      bool
}

// NewFailoverSupervisor returns a supervisor for the broadcast described by cfg.
func NewFailoverSupervisor(cfg Config, phase PhaseSwitcher, opts FailoverOptions) *FailoverSupervisor {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultFailoverGrace
	}
	return &FailoverSupervisor{
		clock:    opts.Clock,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		onChange: opts.OnChange,
		grace:    opts.Grace,
		cfg:      cfg,
		phase:    phase,
	}
}

// HandleError consumes a player error code. Non-fatal codes are left to the
// player.
func (s *FailoverSupervisor) HandleError(code int) {
	if !IsFatalError(code) {
		s.log.Debug("non-fatal player error ignored", slog.Int("code", code))
		return
	}
	s.metrics.IncFatalErrors()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.failingOver {
		s.mu.Unlock()
		s.log.Debug("fatal error while failover pending", slog.Int("code", code))
		return
	}

	if !s.cfg.CanFailover() || s.phase.UsingBackup() {
		s.mu.Unlock()
		s.log.Warn("fatal player error, no failover available",
			slog.Int("code", code),
			slog.Bool("failover_enabled", s.cfg.FailoverEnabled),
			slog.Bool("has_backup", s.cfg.HasBackup()))
		s.metrics.IncTerminalErrors()
		s.phase.SetPhase(PhaseError)
		return
	}

	s.failingOver = true
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.grace, func() { s.completeFailover(gen) })
	s.mu.Unlock()

	s.log.Info("fatal player error, failover scheduled",
		slog.Int("code", code),
		slog.Duration("grace", s.grace))
	s.metrics.IncFailoversStarted()
	s.notify()
}

// completeFailover runs when the grace delay of attempt gen elapses.
func (s *FailoverSupervisor) completeFailover(gen uint64) {
	s.mu.Lock()
	if s.closed || !s.failingOver || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.failingOver = false
	s.timer = nil
	s.mu.Unlock()

	if s.phase.Phase().Terminal() {
		s.log.Debug("failover dropped, broadcast already terminal")
		s.notify()
		return
	}
	if s.phase.SwitchToBackup() {
		s.metrics.IncFailoversCompleted()
	}
	s.notify()
}

// HandleState consumes a player state code.
func (s *FailoverSupervisor) HandleState(state int) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	switch state {
	case PlayerStatePlaying:
		if s.cancelPending() {
			s.log.Info("player recovered, failover cancelled")
			s.metrics.IncFailoversCancelled()
			s.notify()
		}
	case PlayerStateEnded:
		cancelled := s.cancelPending()
		s.phase.SetPhase(PhasePostStream)
		if cancelled {
			s.notify()
		}
	default:
		s.log.Debug("player state ignored", slog.Int("state", state))
	}
}

// cancelPending stops an in-flight failover and reports whether one existed.
func (s *FailoverSupervisor) cancelPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.failingOver {
		return false
	}
	s.stopTimerLocked()
	return true
}

// stopTimerLocked clears the failing-over state. Caller must hold s.mu.
func (s *FailoverSupervisor) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.failingOver = false
	s.gen++
}

// IsFailingOver reports whether a failover is waiting out its grace delay.
func (s *FailoverSupervisor) IsFailingOver() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failingOver
}

// Close cancels any pending failover. Signals received after Close are ignored.
func (s *FailoverSupervisor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopTimerLocked()
}

func (s *FailoverSupervisor) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}
