package audio

import "errors"

// ErrBusy is returned by Enqueue when a playback session is already active.
// Audio is best-effort and must not fall behind wall-clock time, so a newly
// due batch is dropped rather than queued.
var ErrBusy = errors.New("audio: player busy")

// State is the playback device state, persisted on every transition so the
// web layer can poll a "now playing" indicator.
type State string

const (
	StateIdle       State = "idle"
	StateAnnouncing State = "announcing"
	StatePlaying    State = "playing"
	StateStopping   State = "stopping"
)

// StepKind identifies a position in the playback protocol.
type StepKind int

const (
	StepChimeOpen StepKind = iota
	StepSpokenTime
	StepClip
	StepChimeClose
)

func (k StepKind) String() string {
	switch k {
	case StepChimeOpen:
		return "chime_open"
	case StepSpokenTime:
		return "spoken_time"
	case StepClip:
		return "clip"
	case StepChimeClose:
		return "chime_close"
	default:
		return "unknown"
	}
}

// Step is one playable unit within a schedule's sequence.
type Step struct {
	Kind  StepKind
	Label string
	Path  string
}

// Item is the ordered step sequence for one due schedule.
type Item struct {
	ScheduleID int64
	Steps      []Step
}

// Snapshot is a point-in-time view of the player, for status output.
type Snapshot struct {
	State      State  `json:"state"`
	Session    uint64 `json:"session"`
	ScheduleID int64  `json:"schedule_id,omitempty"`
	Step       string `json:"step,omitempty"`
}
