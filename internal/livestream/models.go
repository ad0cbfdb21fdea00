package livestream

import "time"

// Phase is the lifecycle stage of a tracked broadcast.
type Phase string

const (
	PhasePreStream  Phase = "pre-stream"
	PhaseLive       Phase = "live"
	PhasePostStream Phase = "post-stream"
	PhaseError      Phase = "error"
)

// Terminal reports whether no further clock-driven transition can leave p.
func (p Phase) Terminal() bool {
	return p == PhasePostStream || p == PhaseError
}

// Player error codes reported by the embedded player.
const (
	ErrorCodeInvalidParam     = 2
	ErrorCodeHTML5            = 5
	ErrorCodeNotFound         = 100
	ErrorCodeEmbedNotAllowed  = 101
	ErrorCodeEmbedNotAllowed2 = 150
)

// Player state codes reported by the embedded player.
const (
	PlayerStateUnstarted = -1
	PlayerStateEnded     = 0
	PlayerStatePlaying   = 1
	PlayerStatePaused    = 2
	PlayerStateBuffering = 3
	PlayerStateCued      = 5
)

var fatalErrorCodes = map[int]struct{}{
	ErrorCodeInvalidParam:     {},
	ErrorCodeHTML5:            {},
	ErrorCodeNotFound:         {},
	ErrorCodeEmbedNotAllowed:  {},
	ErrorCodeEmbedNotAllowed2: {},
}

// IsFatalError reports whether code cannot be recovered without changing the
// video source.
func IsFatalError(code int) bool {
	_, ok := fatalErrorCodes[code]
	return ok
}

// Config is the schedule and source block of a livestream page.
// It is owned by the directory and treated as read-only.
type Config struct {
	ScheduledStart  time.Time
	ScheduledEnd    *time.Time
	PrimaryVideoID  string
	BackupVideoID   string
	FailoverEnabled bool
}

// HasBackup reports whether a backup source is configured.
func (c Config) HasBackup() bool {
	return c.BackupVideoID != ""
}

// CanFailover reports whether the config allows switching to the backup.
func (c Config) CanFailover() bool {
	return c.FailoverEnabled && c.HasBackup()
}

// Ended reports whether the scheduled end is set and at or before now.
func (c Config) Ended(now time.Time) bool {
	return c.ScheduledEnd != nil && !now.Before(*c.ScheduledEnd)
}

// Started reports whether now is at or past the scheduled start.
func (c Config) Started(now time.Time) bool {
	return !now.Before(c.ScheduledStart)
}

// Page is one livestream page returned by the directory.
type Page struct {
	Slug   string
	Config Config
}

// ActiveStream identifies the one broadcast tracked globally.
type ActiveStream struct {
	VideoID string `json:"video_id"`
	Slug    string `json:"slug"`
}

// OverlayState is the coordinator's view at one instant.
type OverlayState struct {
	Active    *ActiveStream `json:"active_stream"`
	Dismissed bool          `json:"dismissed"`
	Path      string        `json:"path"`
	Visible   bool          `json:"visible"`
}

// PhaseState is the phase controller's view at one instant.
type PhaseState struct {
	Phase         Phase         `json:"phase"`
	ActiveVideoID string        `json:"active_video_id"`
	UsingBackup   bool          `json:"using_backup"`
	Remaining     time.Duration `json:"-"`
}

// BroadcastState is the published view of the tracked broadcast.
type BroadcastState struct {
	SessionID        string  `json:"session_id"`
	Slug             string  `json:"slug"`
	Phase            Phase   `json:"phase"`
	ActiveVideoID    string  `json:"active_video_id"`
	UsingBackup      bool    `json:"using_backup"`
	FailingOver      bool    `json:"failing_over"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

// Snapshot is the state published over HTTP and the event stream.
type Snapshot struct {
	Overlay   OverlayState    `json:"overlay"`
	Broadcast *BroadcastState `json:"broadcast"`
}
