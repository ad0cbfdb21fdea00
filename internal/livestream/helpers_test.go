package livestream

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

var testEpoch = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func newFakeClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(testEpoch)
}

// waitFor polls cond until it holds. Timer callbacks of the fake clock run on
// their own goroutines, so effects of Advance are observed asynchronously.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// settle gives stray callbacks a chance to run before a negative assertion.
func settle() {
	time.Sleep(20 * time.Millisecond)
}

func liveConfig() Config {
	return Config{
		ScheduledStart:  testEpoch.Add(-time.Minute),
		PrimaryVideoID:  "primary",
		BackupVideoID:   "backup",
		FailoverEnabled: true,
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
