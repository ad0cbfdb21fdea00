package livestream

import (
	"log/slog"
	"sync"
	"time"

	"livestream-orchestrator/internal/platform/metrics"

	"github.com/jonboulle/clockwork"
)

// DefaultCountdownInterval is how often the pre-stream countdown is recomputed.
const DefaultCountdownInterval = time.Second

// PhaseOptions carries the collaborators of a PhaseController.
// Zero values fall back to the real clock, a discarding logger and no metrics.
type PhaseOptions struct {
	Clock    clockwork.Clock
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Interval time.Duration

	// OnChange is called after every state change, outside the controller lock.
	OnChange func()
}

// PhaseController owns the lifecycle phase and the active video source of a
// single broadcast.
type PhaseController struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	log      *slog.Logger
	metrics  *metrics.Metrics
	onChange func()
	cfg      Config

	phase       Phase
	activeID    string
	usingBackup bool
	remaining   time.Duration

	stopTick chan struct{}
	closed   bool
}

// NewPhaseController derives the initial phase of cfg from the clock and, when
// the broadcast has not started yet, starts the countdown.
func NewPhaseController(cfg Config, opts PhaseOptions) *PhaseController {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultCountdownInterval
	}

	c := &PhaseController{
		clock:    opts.Clock,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		onChange: opts.OnChange,
		cfg:      cfg,
		activeID: cfg.PrimaryVideoID,
	}

	now := c.clock.Now()
	switch {
	case cfg.Ended(now):
		c.phase = PhasePostStream
	case cfg.Started(now):
		c.phase = PhaseLive
	default:
		c.phase = PhasePreStream
		c.remaining = cfg.ScheduledStart.Sub(now)
		c.stopTick = make(chan struct{})
		go c.runCountdown(c.clock.NewTicker(opts.Interval), c.stopTick)
	}
	c.metrics.ObservePhase(string(c.phase))
	return c
}

func (c *PhaseController) runCountdown(ticker clockwork.Ticker, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if c.tick() {
				return
			}
		}
	}
}

// tick recomputes the remaining time from the clock and reports whether the
// countdown is over.
func (c *PhaseController) tick() bool {
	c.mu.Lock()
	if c.closed || c.phase != PhasePreStream {
		c.mu.Unlock()
		return true
	}

	c.remaining = c.cfg.ScheduledStart.Sub(c.clock.Now())
	if c.remaining > 0 {
		c.mu.Unlock()
		c.notify()
		return false
	}

	c.remaining = 0
	c.phase = PhaseLive
	c.stopCountdownLocked()
	c.mu.Unlock()

	c.log.Info("broadcast started", slog.String("video_id", c.cfg.PrimaryVideoID))
	c.metrics.ObservePhase(string(PhaseLive))
	c.notify()
	return true
}

// stopCountdownLocked signals the countdown goroutine to exit.
// Caller must hold c.mu.
func (c *PhaseController) stopCountdownLocked() {
	if c.stopTick != nil {
		close(c.stopTick)
		c.stopTick = nil
	}
}

// SwitchToBackup makes the backup source active. It reports false when no
// backup exists or the backup is already in use; a broadcast fails over once.
func (c *PhaseController) SwitchToBackup() bool {
	c.mu.Lock()
	if c.closed || !c.cfg.HasBackup() || c.usingBackup {
		c.mu.Unlock()
		return false
	}
	c.activeID = c.cfg.BackupVideoID
	c.usingBackup = true
	c.mu.Unlock()

	c.log.Info("switched to backup source",
		slog.String("primary_video_id", c.cfg.PrimaryVideoID),
		slog.String("backup_video_id", c.cfg.BackupVideoID))
	c.notify()
	return true
}

// SetPhase overwrites the current phase. Leaving pre-stream cancels the countdown.
func (c *PhaseController) SetPhase(p Phase) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	prev := c.phase
	c.phase = p
	if p != PhasePreStream {
		c.stopCountdownLocked()
		c.remaining = 0
	}
	c.mu.Unlock()

	if prev == p {
		return
	}
	c.log.Info("phase changed", slog.String("from", string(prev)), slog.String("to", string(p)))
	c.metrics.ObservePhase(string(p))
	c.notify()
}

// Close stops the countdown. Every mutation after Close is a no-op.
func (c *PhaseController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopCountdownLocked()
}

// State returns a consistent view of the controller.
func (c *PhaseController) State() PhaseState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return PhaseState{
		Phase:         c.phase,
		ActiveVideoID: c.activeID,
		UsingBackup:   c.usingBackup,
		Remaining:     c.remaining,
	}
}

// Phase returns the current phase.
func (c *PhaseController) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// ActiveVideoID returns the source the player should load.
func (c *PhaseController) ActiveVideoID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// UsingBackup reports whether the backup source is active.
func (c *PhaseController) UsingBackup() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usingBackup
}

// Remaining returns the time left until the scheduled start. It is zero
// outside pre-stream.
func (c *PhaseController) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *PhaseController) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}
