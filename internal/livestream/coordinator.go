package livestream

import (
	"context"
	"log/slog"
	"sync"

	"livestream-orchestrator/internal/platform/metrics"

	"github.com/jonboulle/clockwork"
)

// CoordinatorOptions carries the collaborators of a Coordinator.
type CoordinatorOptions struct {
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Routes  RoutePolicy
}

// Coordinator is the app-lifetime owner of the one active stream and of the
// overlay's visibility. Create one per application session and share it.
type Coordinator struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	log       *slog.Logger
	metrics   *metrics.Metrics
	routes    RoutePolicy
	dir       Directory
	discovery sync.Once

	pages     []Page
	active    *ActiveStream
	dismissed bool
	path      string
	visible   bool

	activation    clockwork.Timer
	activationGen uint64
	closed        bool

	observers []func()
}

// NewCoordinator returns an idle coordinator that discovers broadcasts in dir
// once Start is called.
func NewCoordinator(dir Directory, opts CoordinatorOptions) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Routes.livePrefix == "" {
		opts.Routes = NewRoutePolicy("", nil)
	}
	return &Coordinator{
		clock:   opts.Clock,
		log:     opts.Logger,
		metrics: opts.Metrics,
		routes:  opts.Routes,
		dir:     dir,
	}
}

// Subscribe registers fn to be called after every change of the overlay state.
// fn runs outside the coordinator lock and may read the coordinator.
func (c *Coordinator) Subscribe(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Start queries the directory. Only the first call does any work; a failed
// or empty query leaves the coordinator idle for the rest of the session.
func (c *Coordinator) Start(ctx context.Context) {
	c.discovery.Do(func() { c.discover(ctx) })
}

func (c *Coordinator) discover(ctx context.Context) {
	pages, err := c.dir.ListPages(ctx)
	if err != nil {
		c.log.Warn("stream directory query failed, overlay idle", slog.String("error", err.Error()))
		return
	}

	c.mu.Lock()
	c.pages = pages
	c.mu.Unlock()

	if len(pages) == 0 {
		c.log.Info("no livestream configured, overlay idle")
		return
	}
	if len(pages) > 1 {
		c.log.Debug("multiple livestream pages, tracking the first", slog.Int("count", len(pages)))
	}
	c.schedule(pages[0])
}

// schedule registers page now if it is within its window, or arms a one-shot
// activation at its start instant.
func (c *Coordinator) schedule(page Page) {
	now := c.clock.Now()
	stream := ActiveStream{VideoID: page.Config.PrimaryVideoID, Slug: page.Slug}

	switch {
	case page.Config.Ended(now):
		c.log.Info("livestream already ended", slog.String("slug", page.Slug))
	case page.Config.Started(now):
		c.log.Info("livestream in progress, registering", slog.String("slug", page.Slug))
		c.Register(stream)
	default:
		delay := page.Config.ScheduledStart.Sub(now)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.activationGen++
		gen := c.activationGen
		c.activation = c.clock.AfterFunc(delay, func() { c.activate(gen, stream) })
		c.mu.Unlock()

		c.log.Info("livestream activation scheduled",
			slog.String("slug", page.Slug),
			slog.Duration("delay", delay))
	}
}

// activate is the activation callback of attempt gen.
func (c *Coordinator) activate(gen uint64, stream ActiveStream) {
	c.mu.Lock()
	if c.closed || gen != c.activationGen {
		c.mu.Unlock()
		return
	}
	c.activation = nil
	changed := c.registerLocked(stream)
	c.mu.Unlock()

	c.log.Info("livestream activated", slog.String("slug", stream.Slug))
	if changed {
		c.notify()
	}
}

// Register makes stream the active stream. Registering the current pair again
// changes nothing; any other pair clears the dismissal.
func (c *Coordinator) Register(stream ActiveStream) {
	c.mu.Lock()
	changed := c.registerLocked(stream)
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// registerLocked reports whether the state changed. Caller must hold c.mu.
func (c *Coordinator) registerLocked(stream ActiveStream) bool {
	if c.closed {
		return false
	}
	if c.active != nil && *c.active == stream {
		return false
	}
	c.active = &stream
	c.dismissed = false
	c.recomputeLocked()
	c.metrics.SetActiveStream(true)
	return true
}

// Clear drops the active stream, resets the dismissal and cancels a pending
// activation.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	cancelled := c.cancelActivationLocked()
	changed := c.active != nil || c.dismissed
	c.active = nil
	c.dismissed = false
	c.recomputeLocked()
	c.mu.Unlock()

	c.metrics.SetActiveStream(false)
	if cancelled {
		c.log.Debug("pending livestream activation cancelled")
	}
	if changed {
		c.notify()
	}
}

// Dismiss hides the overlay until a different stream is registered.
func (c *Coordinator) Dismiss() {
	c.mu.Lock()
	if c.dismissed {
		c.mu.Unlock()
		return
	}
	c.dismissed = true
	c.recomputeLocked()
	c.mu.Unlock()

	c.notify()
}

// SetPath records a navigation to path and recomputes visibility.
func (c *Coordinator) SetPath(path string) {
	c.mu.Lock()
	if c.path == path {
		c.mu.Unlock()
		return
	}
	c.path = path
	c.recomputeLocked()
	c.mu.Unlock()

	c.notify()
}

// recomputeLocked refreshes the derived visibility. Caller must hold c.mu.
func (c *Coordinator) recomputeLocked() {
	c.visible = c.routes.Visible(c.active, c.dismissed, c.path)
	c.metrics.SetOverlayVisible(c.visible)
}

// cancelActivationLocked stops a pending activation. Caller must hold c.mu.
func (c *Coordinator) cancelActivationLocked() bool {
	c.activationGen++
	if c.activation == nil {
		return false
	}
	c.activation.Stop()
	c.activation = nil
	return true
}

// Close cancels a pending activation. The coordinator ignores every later
// registration.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancelActivationLocked()
}

// State returns a copy of the overlay state.
func (c *Coordinator) State() OverlayState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := OverlayState{
		Dismissed: c.dismissed,
		Path:      c.path,
		Visible:   c.visible,
	}
	if c.active != nil {
		active := *c.active
		st.Active = &active
	}
	return st
}

// Active returns the active stream, if any.
func (c *Coordinator) Active() (ActiveStream, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ActiveStream{}, false
	}
	return *c.active, true
}

// Visible reports whether the overlay should render on the current path.
func (c *Coordinator) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// Page returns the discovered page for slug.
func (c *Coordinator) Page(slug string) (Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pages {
		if p.Slug == slug {
			return p, true
		}
	}
	return Page{}, false
}

// ActivationPending reports whether a scheduled activation has not fired yet.
func (c *Coordinator) ActivationPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activation != nil
}

// PagePath returns the canonical page path for slug.
func (c *Coordinator) PagePath(slug string) string {
	return c.routes.PagePath(slug)
}

func (c *Coordinator) notify() {
	c.mu.Lock()
	observers := make([]func(), len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}
