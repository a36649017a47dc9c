package terminal

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/termhub/internal/infrastructure/monitoring"
)

// Timing holds the fixed intervals the session core sleeps on. They are
// best-effort settle durations, not completion signals; nothing in this core
// observes end of command execution.
type Timing struct {
	// StartupSettle is how long a freshly spawned shell gets to emit its
	// banner and prompt before that noise is discarded.
	StartupSettle time.Duration

	// InterruptEcho is the pause after the interrupt byte sent during
	// startup cleanup, before the resulting echo is discarded.
	InterruptEcho time.Duration

	// CommandSettle is the default wait between writing a line command and
	// draining its output.
	CommandSettle time.Duration

	// InputSettle is the short wait after raw input before collecting any
	// immediate reaction.
	InputSettle time.Duration

	// CloseGrace bounds how long Close waits for the reader goroutine.
	CloseGrace time.Duration
}

// DefaultTiming returns the intervals the original tuning settled on.
func DefaultTiming() Timing {
	return Timing{
		StartupSettle: time.Second,
		InterruptEcho: 100 * time.Millisecond,
		CommandSettle: 500 * time.Millisecond,
		InputSettle:   50 * time.Millisecond,
		CloseGrace:    time.Second,
	}
}

// Session is one PTY-backed interactive shell. It owns the PTY handle, the
// background reader goroutine, the output buffer, and an optional transcript
// sink. Sessions are created and started through the Manager.
type Session struct {
	ID        string
	Name      string
	Command   string
	CreatedAt time.Time
	LogPath   string

	buf     *Buffer
	timing  Timing
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu         sync.RWMutex
	state      State
	cols, rows int
	cmd        *exec.Cmd
	ptmx       *os.File
	logFile    *os.File
	readerDone chan struct{}
	readerLive atomic.Bool
}

func newSession(id, name string, cols, rows int, command, logPath string, bufChunks int, timing Timing, logger *zap.Logger) *Session {
	return &Session{
		ID:        id,
		Name:      name,
		Command:   command,
		CreatedAt: time.Now(),
		LogPath:   logPath,
		buf:       NewBuffer(bufChunks),
		timing:    timing,
		logger:    logger,
		state:     StateCreated,
		cols:      cols,
		rows:      rows,
	}
}

// Start spawns the PTY with the configured geometry and command line,
// launches the reader goroutine, and suppresses shell-startup noise so the
// first real command's output is not polluted. A session starts at most
// once.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrNotRunning
	}

	argv := strings.Fields(s.Command)
	if len(argv) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("empty command line")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(s.rows),
		Cols: uint16(s.cols),
	})
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to start PTY: %w", err)
	}

	s.cmd = cmd
	s.ptmx = ptmx

	if s.LogPath != "" {
		f, err := os.OpenFile(s.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			// Transcript durability is best-effort; interactive use wins.
			s.logger.Warn("transcript sink unavailable",
				zap.String("session_id", s.ID),
				zap.String("log_path", s.LogPath),
				zap.Error(err),
			)
		} else {
			s.logFile = f
		}
	}

	s.state = StateRunning
	s.readerDone = make(chan struct{})
	s.readerLive.Store(true)
	go s.readLoop(ptmx)

	// Reap the child once it exits on its own; liveness is signalled by the
	// reader hitting EOF, not by process exit.
	go func() { _ = cmd.Wait() }()

	s.mu.Unlock()

	s.startupCleanup()
	return nil
}

// startupCleanup drains shell-startup noise: wait for init, discard the
// banner and prompt, cancel any partially typed prompt state with an
// interrupt, then discard its echo.
func (s *Session) startupCleanup() {
	time.Sleep(s.timing.StartupSettle)
	s.buf.Drain()

	if err := s.Write("\x03"); err != nil {
		return
	}
	time.Sleep(s.timing.InterruptEcho)
	s.buf.Drain()
}

// readLoop continuously reads from the PTY, scrubs terminal-control noise,
// and buffers the result. A read error while the session is still supposed
// to be running ends its liveness signal without force-closing the PTY.
func (s *Session) readLoop(ptmx *os.File) {
	defer close(s.readerDone)
	defer s.readerLive.Store(false)

	var scrub Scrubber
	buf := make([]byte, 4096)
	for {
		n, err := ptmx.Read(buf)
		if n > 0 {
			s.ingest(scrub.Scrub(string(buf[:n])))
		}
		if err != nil {
			s.ingest(scrub.Flush())
			if s.running() {
				s.logger.Warn("session output read failed",
					zap.String("session_id", s.ID),
					zap.Error(err),
				)
			}
			return
		}
	}
}

// ingest buffers one cleaned chunk and appends it to the transcript sink.
// Sink failures are logged and swallowed, never propagated.
func (s *Session) ingest(cleaned string) {
	if cleaned == "" {
		return
	}

	s.buf.Append(cleaned)
	if s.metrics != nil {
		s.metrics.OutputBytes.Add(float64(len(cleaned)))
	}

	if s.logFile == nil {
		return
	}
	if _, err := s.logFile.WriteString(cleaned); err != nil {
		s.logger.Warn("transcript write failed",
			zap.String("session_id", s.ID),
			zap.Error(err),
		)
		return
	}
	if err := s.logFile.Sync(); err != nil {
		s.logger.Warn("transcript sync failed",
			zap.String("session_id", s.ID),
			zap.Error(err),
		)
	}
}

func (s *Session) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateRunning
}

func (s *Session) closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateClosed
}

// Write passes text straight through to the PTY.
func (s *Session) Write(text string) error {
	s.mu.RLock()
	ptmx := s.ptmx
	running := s.state == StateRunning
	s.mu.RUnlock()

	if !running {
		return ErrNotRunning
	}
	if _, err := ptmx.WriteString(text); err != nil {
		return fmt.Errorf("pty write: %w", err)
	}
	return nil
}

// SendCommand clears the buffer, writes the command followed by a carriage
// return, waits the settle interval, then drains and returns the output.
// The wait is a fixed duration, not a completion signal; callers needing
// exactness should use Write plus explicit ReadOutput polling. A wait of
// zero means the configured default.
func (s *Session) SendCommand(command string, wait time.Duration) (string, error) {
	if !s.running() {
		return "", ErrNotRunning
	}
	if wait <= 0 {
		wait = s.timing.CommandSettle
	}

	s.buf.Drain()
	if err := s.Write(command + "\r"); err != nil {
		return "", err
	}
	time.Sleep(wait)
	return s.buf.Drain(), nil
}

// SendInput writes raw input with no line ending, waits the short input
// settle, and returns whatever immediate output accumulated.
func (s *Session) SendInput(text string) (string, error) {
	if err := s.Write(text); err != nil {
		return "", err
	}
	return s.ReadOutput(s.timing.InputSettle)
}

// ReadOutput drains the buffer. A positive timeout sleeps first so that more
// output can accumulate.
func (s *Session) ReadOutput(timeout time.Duration) (string, error) {
	if s.closed() {
		return "", ErrNotRunning
	}
	if timeout > 0 {
		time.Sleep(timeout)
	}
	return s.buf.Drain(), nil
}

// LatestOutput returns the last n output chunks without draining, for
// introspection that must not disturb pending reads.
func (s *Session) LatestOutput(n int) string {
	if n <= 0 {
		n = 10
	}
	return s.buf.Peek(n)
}

// Resize changes the PTY geometry.
func (s *Session) Resize(cols, rows int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return ErrNotRunning
	}
	if err := pty.Setsize(s.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	}); err != nil {
		return fmt.Errorf("pty resize: %w", err)
	}
	s.cols, s.rows = cols, rows
	return nil
}

// Geometry reports the current terminal dimensions.
func (s *Session) Geometry() (cols, rows int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cols, s.rows
}

// Alive reports whether the session is running and its reader goroutine has
// not exited.
func (s *Session) Alive() bool {
	return s.running() && s.readerLive.Load()
}

// Close stops the session: mark closed, terminate the child, release the
// PTY (which unblocks the reader), then wait a bounded grace period for the
// reader to exit. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	wasRunning := s.state == StateRunning
	s.state = StateClosed
	cmd := s.cmd
	ptmx := s.ptmx
	logFile := s.logFile
	done := s.readerDone
	s.mu.Unlock()

	if !wasRunning {
		return nil
	}

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	// PTY release must not block, even if the reader never exits.
	if ptmx != nil {
		_ = ptmx.Close()
	}

	if done != nil {
		select {
		case <-done:
		case <-time.After(s.timing.CloseGrace):
			s.logger.Warn("reader did not exit within grace period",
				zap.String("session_id", s.ID),
			)
		}
	}

	if logFile != nil {
		_ = logFile.Close()
	}
	return nil
}
