package livestream

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type countingDirectory struct {
	calls atomic.Int32
	pages []Page
	err   error
}

func (d *countingDirectory) ListPages(ctx context.Context) ([]Page, error) {
	d.calls.Add(1)
	return d.pages, d.err
}

func newTestCoordinator(t *testing.T, dir Directory) (*clockwork.FakeClock, *Coordinator) {
	t.Helper()
	fc := newFakeClock()
	c := NewCoordinator(dir, CoordinatorOptions{Clock: fc})
	t.Cleanup(c.Close)
	return fc, c
}

func page(slug string, start time.Time, end *time.Time) Page {
	return Page{Slug: slug, Config: Config{
		ScheduledStart:  start,
		ScheduledEnd:    end,
		PrimaryVideoID:  slug + "-primary",
		BackupVideoID:   slug + "-backup",
		FailoverEnabled: true,
	}}
}

func TestCoordinator_Start_queries_once(t *testing.T) {
	dir := &countingDirectory{pages: []Page{page("launch", testEpoch.Add(-time.Minute), nil)}}
	_, c := newTestCoordinator(t, dir)

	c.Start(context.Background())
	c.Start(context.Background())

	if got := dir.calls.Load(); got != 1 {
		t.Errorf("directory queried %d times, want 1", got)
	}
}

func TestCoordinator_Start_idle(t *testing.T) {
	tests := []struct {
		name string
		dir  *countingDirectory
	}{
		{"no_pages", &countingDirectory{}},
		{"query_error", &countingDirectory{err: errors.New("backend down")}},
		{"already_ended", &countingDirectory{pages: []Page{
			page("old", testEpoch.Add(-2*time.Hour), timePtr(testEpoch.Add(-time.Hour))),
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc, c := newTestCoordinator(t, tt.dir)
			c.Start(context.Background())
			fc.Advance(24 * time.Hour)
			settle()

			if _, ok := c.Active(); ok {
				t.Error("expected no active stream")
			}
			if c.ActivationPending() {
				t.Error("expected no pending activation")
			}
			if c.Visible() {
				t.Error("overlay should not be visible")
			}
		})
	}
}

func TestCoordinator_Start_registers_in_window(t *testing.T) {
	tests := []struct {
		name string
		page Page
	}{
		{"no_end", page("launch", testEpoch.Add(-time.Minute), nil)},
		{"before_end", page("launch", testEpoch.Add(-time.Minute), timePtr(testEpoch.Add(time.Hour)))},
		{"exact_start", page("launch", testEpoch, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newTestCoordinator(t, NewStaticDirectory(tt.page))
			c.Start(context.Background())

			got, ok := c.Active()
			if !ok {
				t.Fatal("expected an active stream")
			}
			want := ActiveStream{VideoID: "launch-primary", Slug: "launch"}
			if got != want {
				t.Errorf("Active() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestCoordinator_Start_uses_first_page(t *testing.T) {
	dir := NewStaticDirectory(
		page("first", testEpoch.Add(-time.Minute), nil),
		page("second", testEpoch.Add(-time.Minute), nil),
	)
	_, c := newTestCoordinator(t, dir)
	c.Start(context.Background())

	got, _ := c.Active()
	if got.Slug != "first" {
		t.Errorf("Active().Slug = %q, want first", got.Slug)
	}
	if _, ok := c.Page("second"); !ok {
		t.Error("all discovered pages should be kept for lookup")
	}
}

func TestCoordinator_scheduled_activation(t *testing.T) {
	fc, c := newTestCoordinator(t, NewStaticDirectory(page("launch", testEpoch.Add(10*time.Minute), nil)))
	c.Start(context.Background())

	if !c.ActivationPending() {
		t.Fatal("expected a pending activation")
	}

	fc.Advance(10*time.Minute - time.Millisecond)
	settle()
	if _, ok := c.Active(); ok {
		t.Fatal("registered before the start instant")
	}

	fc.Advance(time.Millisecond)
	waitFor(t, "activation", func() bool {
		_, ok := c.Active()
		return ok
	})
	if c.ActivationPending() {
		t.Error("activation should no longer be pending")
	}
}

func TestCoordinator_Clear_cancels_activation(t *testing.T) {
	fc, c := newTestCoordinator(t, NewStaticDirectory(page("launch", testEpoch.Add(time.Minute), nil)))
	c.Start(context.Background())
	c.Clear()

	fc.Advance(time.Hour)
	settle()
	if _, ok := c.Active(); ok {
		t.Error("cleared activation must not register")
	}
}

func TestCoordinator_Close_cancels_activation(t *testing.T) {
	fc, c := newTestCoordinator(t, NewStaticDirectory(page("launch", testEpoch.Add(time.Minute), nil)))
	c.Start(context.Background())
	c.Close()

	fc.Advance(time.Hour)
	settle()
	if _, ok := c.Active(); ok {
		t.Error("closed coordinator must not register")
	}
	c.Register(ActiveStream{VideoID: "v", Slug: "s"})
	if _, ok := c.Active(); ok {
		t.Error("Register after Close should be a no-op")
	}
}

func TestCoordinator_Register_idempotent(t *testing.T) {
	_, c := newTestCoordinator(t, NewStaticDirectory())
	var notified atomic.Int32
	c.Subscribe(func() { notified.Add(1) })

	s := ActiveStream{VideoID: "v1", Slug: "launch"}
	c.Register(s)
	c.Register(s)

	if got := notified.Load(); got != 1 {
		t.Errorf("observers notified %d times, want 1", got)
	}
}

func TestCoordinator_Dismiss_and_reregister(t *testing.T) {
	_, c := newTestCoordinator(t, NewStaticDirectory())
	c.SetPath("/products/1")
	c.Register(ActiveStream{VideoID: "v1", Slug: "launch"})
	if !c.Visible() {
		t.Fatal("overlay should be visible")
	}

	c.Dismiss()
	if c.Visible() {
		t.Fatal("Dismiss should hide the overlay immediately")
	}
	if _, ok := c.Active(); !ok {
		t.Fatal("Dismiss must keep the active stream")
	}

	c.Register(ActiveStream{VideoID: "v1", Slug: "launch"})
	if c.Visible() {
		t.Error("re-registering the same stream must keep the dismissal")
	}

	c.Register(ActiveStream{VideoID: "v2", Slug: "launch"})
	if !c.Visible() {
		t.Error("a different video id should clear the dismissal")
	}

	c.Dismiss()
	c.Register(ActiveStream{VideoID: "v2", Slug: "encore"})
	if !c.Visible() {
		t.Error("a different slug should clear the dismissal")
	}
}

func TestCoordinator_SetPath_visibility(t *testing.T) {
	_, c := newTestCoordinator(t, NewStaticDirectory())
	c.Register(ActiveStream{VideoID: "v1", Slug: "launch"})

	steps := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/live/launch", false},
		{"/products/9", true},
		{"/cart/items", false},
		{"/checkout/result/ok", false},
		{"/", true},
	}
	for _, s := range steps {
		c.SetPath(s.path)
		if got := c.Visible(); got != s.want {
			t.Errorf("path %q: Visible() = %v, want %v", s.path, got, s.want)
		}
	}
}

func TestCoordinator_Clear(t *testing.T) {
	_, c := newTestCoordinator(t, NewStaticDirectory())
	c.Register(ActiveStream{VideoID: "v1", Slug: "launch"})
	c.Dismiss()
	c.Clear()

	st := c.State()
	if st.Active != nil || st.Dismissed || st.Visible {
		t.Errorf("unexpected state after Clear: %+v", st)
	}
}

func TestCoordinator_State_is_a_copy(t *testing.T) {
	_, c := newTestCoordinator(t, NewStaticDirectory())
	c.Register(ActiveStream{VideoID: "v1", Slug: "launch"})

	st := c.State()
	st.Active.VideoID = "mutated"
	if got, _ := c.Active(); got.VideoID != "v1" {
		t.Errorf("State() leaked internal state: %q", got.VideoID)
	}
}
