package livestream

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"livestream-orchestrator/internal/platform/metrics"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ErrNoBroadcast is returned when a player signal arrives while no broadcast
// is tracked.
var ErrNoBroadcast = errors.New("no active broadcast")

// Publisher receives every state snapshot the service produces.
type Publisher interface {
	Publish(snap Snapshot)
}

// ServiceOptions carries the collaborators and timings of a Service.
type ServiceOptions struct {
	Clock             clockwork.Clock
	Logger            *slog.Logger
	Metrics           *metrics.Metrics
	Publisher         Publisher
	CountdownInterval time.Duration
	FailoverGrace     time.Duration
}

// Broadcast is the phase controller and failover supervisor of the stream the
// coordinator currently tracks. Both are created and torn down together.
type Broadcast struct {
	ID       string
	Slug     string
	Phase    *PhaseController
	Failover *FailoverSupervisor
}

// State returns the published view of the broadcast.
func (b *Broadcast) State() BroadcastState {
	ps := b.Phase.State()
	return BroadcastState{
		SessionID:        b.ID,
		Slug:             b.Slug,
		Phase:            ps.Phase,
		ActiveVideoID:    ps.ActiveVideoID,
		UsingBackup:      ps.UsingBackup,
		FailingOver:      b.Failover.IsFailingOver(),
		RemainingSeconds: ps.Remaining.Seconds(),
	}
}

// Close releases every timer owned by the broadcast.
func (b *Broadcast) Close() {
	b.Failover.Close()
	b.Phase.Close()
}

// Service keeps one Broadcast in step with the coordinator's active stream and
// routes player signals to it.
type Service struct {
	coord *Coordinator
	opts  ServiceOptions
	log   *slog.Logger

	mu      sync.Mutex
	current *Broadcast
	closed  bool

	// pubMu serializes snapshot building and publishing so subscribers see
	// snapshots in the order they were taken.
	pubMu sync.Mutex
}

// NewService returns a service driven by coord.
func NewService(coord *Coordinator, opts ServiceOptions) *Service {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{coord: coord, opts: opts, log: opts.Logger}
	coord.Subscribe(s.reconcile)
	return s
}

// Coordinator returns the overlay coordinator the service follows.
func (s *Service) Coordinator() *Coordinator {
	return s.coord
}

// reconcile creates, replaces or tears down the broadcast so it matches the
// coordinator's active stream.
func (s *Service) reconcile() {
	active, ok := s.coord.Active()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var stale, created *Broadcast
	switch {
	case !ok:
		stale, s.current = s.current, nil
	case s.current == nil || s.current.Slug != active.Slug:
		stale = s.current
		created = s.newBroadcastLocked(active)
		s.current = created
	}
	s.mu.Unlock()

	if stale != nil {
		stale.Close()
		s.log.Info("broadcast torn down", slog.String("session_id", stale.ID), slog.String("slug", stale.Slug))
	}
	if created != nil {
		s.log.Info("broadcast tracked",
			slog.String("session_id", created.ID),
			slog.String("slug", created.Slug),
			slog.String("phase", string(created.Phase.Phase())))
	}
	s.publish()
}

// newBroadcastLocked builds the broadcast for stream. The schedule comes from
// the discovered page; a stream registered without one is taken as live now.
// Caller must hold s.mu.
func (s *Service) newBroadcastLocked(stream ActiveStream) *Broadcast {
	cfg := Config{
		ScheduledStart: s.opts.Clock.Now(),
		PrimaryVideoID: stream.VideoID,
	}
	if page, ok := s.coord.Page(stream.Slug); ok {
		cfg = page.Config
	}

	b := &Broadcast{ID: uuid.NewString(), Slug: stream.Slug}
	log := s.log.With(slog.String("session_id", b.ID), slog.String("slug", b.Slug))
	onChange := func() { s.onBroadcastChange(b) }

	b.Phase = NewPhaseController(cfg, PhaseOptions{
		Clock:    s.opts.Clock,
		Logger:   log,
		Metrics:  s.opts.Metrics,
		Interval: s.opts.CountdownInterval,
		OnChange: onChange,
	})
	b.Failover = NewFailoverSupervisor(cfg, b.Phase, FailoverOptions{
		Clock:    s.opts.Clock,
		Logger:   log,
		Metrics:  s.opts.Metrics,
		Grace:    s.opts.FailoverGrace,
		OnChange: onChange,
	})
	return b
}

// onBroadcastChange forwards the active video id to the coordinator and
// publishes. Callbacks of a torn-down broadcast are dropped.
func (s *Service) onBroadcastChange(b *Broadcast) {
	s.mu.Lock()
	current := !s.closed && s.current == b
	s.mu.Unlock()
	if !current {
		return
	}

	s.coord.Register(ActiveStream{VideoID: b.Phase.ActiveVideoID(), Slug: b.Slug})
	s.publish()
}

// HandlePlayerError routes a player error code to the tracked broadcast.
func (s *Service) HandlePlayerError(code int) error {
	b := s.Current()
	if b == nil {
		return ErrNoBroadcast
	}
	b.Failover.HandleError(code)
	return nil
}

// HandlePlayerState routes a player state code to the tracked broadcast.
func (s *Service) HandlePlayerState(state int) error {
	b := s.Current()
	if b == nil {
		return ErrNoBroadcast
	}
	b.Failover.HandleState(state)
	return nil
}

// Current returns the tracked broadcast, or nil.
func (s *Service) Current() *Broadcast {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Snapshot returns the overlay and broadcast state.
func (s *Service) Snapshot() Snapshot {
	snap := Snapshot{Overlay: s.coord.State()}
	if b := s.Current(); b != nil {
		st := b.State()
		snap.Broadcast = &st
	}
	return snap
}

func (s *Service) publish() {
	if s.opts.Publisher == nil {
		return
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.opts.Publisher.Publish(s.Snapshot())
}

// Close tears down the broadcast and the coordinator's pending timers.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	b := s.current
	s.current = nil
	s.mu.Unlock()

	if b != nil {
		b.Close()
	}
	s.coord.Close()
}
