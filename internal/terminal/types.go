package terminal

import (
	"errors"
	"time"
)

// Session lifecycle states. A session moves Created→Running exactly once on
// start and Running→Closed exactly once on close.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrNotFound is returned when an identifier resolves to no session.
	ErrNotFound = errors.New("session not found")

	// ErrAlreadyRunning is returned when start is called on a running session.
	ErrAlreadyRunning = errors.New("session already running")

	// ErrNotRunning is returned for I/O attempted before start or after close.
	ErrNotRunning = errors.New("session not running")
)

// Descriptor is the public representation of a session.
type Descriptor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Alive     bool      `json:"alive"`
	CreatedAt time.Time `json:"created_at"`
	LogPath   string    `json:"log_path"`
}

// HistoryEntry records one command submitted through the line-oriented
// command path. Raw keystroke input is never recorded.
type HistoryEntry struct {
	Command   string    `json:"command"`
	Timestamp time.Time `json:"timestamp"`
}
