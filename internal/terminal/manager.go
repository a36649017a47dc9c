package terminal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/termhub/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termhub/internal/shared/id"
)

// Config holds the defaults applied to new sessions.
type Config struct {
	Shell        string // default launch command when none is given
	Cols         int
	Rows         int
	LogDir       string // transcript directory; empty disables transcripts
	BufferChunks int
	Timing       Timing
}

// DefaultConfig returns the stock session defaults: the caller's shell (or
// /bin/bash), a 120x30 terminal, and transcripts under ./logs.
func DefaultConfig() Config {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}
	return Config{
		Shell:        shell,
		Cols:         120,
		Rows:         30,
		LogDir:       "logs",
		BufferChunks: DefaultBufferChunks,
		Timing:       DefaultTiming(),
	}
}

type metadata struct {
	name      string
	createdAt time.Time
	logPath   string
}

// Manager is the session registry. It exclusively owns every Session and
// keeps the session, metadata, and history maps consistent: all three are
// created together and destroyed together under one lock. The lock is a
// plain mutex; the registry is small and held briefly, so read concurrency
// is not worth the complexity.
type Manager struct {
	cfg     Config
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
	meta     map[string]*metadata
	history  map[string][]HistoryEntry
	order    []string // ids in creation order, for deterministic name resolution
}

// NewManager creates a session registry.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	def := DefaultConfig()
	if cfg.Shell == "" {
		cfg.Shell = def.Shell
	}
	if cfg.Cols <= 0 {
		cfg.Cols = def.Cols
	}
	if cfg.Rows <= 0 {
		cfg.Rows = def.Rows
	}
	if cfg.BufferChunks <= 0 {
		cfg.BufferChunks = def.BufferChunks
	}
	if cfg.Timing == (Timing{}) {
		cfg.Timing = def.Timing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*Session),
		meta:     make(map[string]*metadata),
		history:  make(map[string][]HistoryEntry),
	}
}

// WithMetrics attaches a metrics collector.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Create spawns and registers a new session. Zero-value arguments take the
// configured defaults; an empty name derives one from the id. Registration
// is all-or-nothing: a spawn failure leaves no trace in the registry.
func (m *Manager) Create(name string, cols, rows int, command string) (Descriptor, error) {
	if cols <= 0 {
		cols = m.cfg.Cols
	}
	if rows <= 0 {
		rows = m.cfg.Rows
	}
	if command == "" {
		command = m.cfg.Shell
	}

	sid := string(id.NewTerminalID())
	short := id.Short(sid)
	if name == "" {
		name = "Session-" + short
	}

	logPath := ""
	if m.cfg.LogDir != "" {
		if err := os.MkdirAll(m.cfg.LogDir, 0o755); err != nil {
			m.logger.Warn("log directory unavailable, transcript disabled",
				zap.String("log_dir", m.cfg.LogDir),
				zap.Error(err),
			)
		} else {
			logPath = filepath.Join(m.cfg.LogDir, SanitizeName(name)+"_"+short+".log")
		}
	}

	s := newSession(sid, name, cols, rows, command, logPath, m.cfg.BufferChunks, m.cfg.Timing, m.logger)
	s.metrics = m.metrics

	if err := s.Start(); err != nil {
		return Descriptor{}, fmt.Errorf("spawn %q: %w", command, err)
	}

	m.mu.Lock()
	m.sessions[sid] = s
	m.meta[sid] = &metadata{name: name, createdAt: s.CreatedAt, logPath: logPath}
	m.history[sid] = make([]HistoryEntry, 0)
	m.order = append(m.order, sid)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SessionsCreated.Inc()
		m.metrics.SessionsActive.Inc()
	}
	m.logger.Info("session created",
		zap.String("session_id", sid),
		zap.String("name", name),
		zap.String("command", command),
		zap.String("log_path", logPath),
	)

	return m.describe(sid, s), nil
}

// resolveLocked maps an identifier to a session id: exact id match first,
// then a name scan. Names are unique by convention only; on a collision the
// most recently created session wins.
func (m *Manager) resolveLocked(identifier string) (string, bool) {
	if _, ok := m.sessions[identifier]; ok {
		return identifier, true
	}
	for i := len(m.order) - 1; i >= 0; i-- {
		sid := m.order[i]
		if m.meta[sid].name == identifier {
			return sid, true
		}
	}
	return "", false
}

// Resolve maps a session id or name to the session id.
func (m *Manager) Resolve(identifier string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveLocked(identifier)
}

// Get returns the session for an id or name.
func (m *Manager) Get(identifier string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sid, ok := m.resolveLocked(identifier)
	if !ok {
		return nil, ErrNotFound
	}
	return m.sessions[sid], nil
}

// List returns descriptors for every registered session in creation order.
// Dead sessions stay listed (alive=false) until explicitly killed; this
// registry never reaps on its own.
func (m *Manager) List() []Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Descriptor, 0, len(m.order))
	for _, sid := range m.order {
		out = append(out, m.describe(sid, m.sessions[sid]))
	}
	return out
}

func (m *Manager) describe(sid string, s *Session) Descriptor {
	return Descriptor{
		ID:        sid,
		Name:      s.Name,
		Alive:     s.Alive(),
		CreatedAt: s.CreatedAt,
		LogPath:   s.LogPath,
	}
}

// RecordCommand appends a command to the session's history if the
// identifier resolves. Only line-oriented commands are recorded, never raw
// keystrokes.
func (m *Manager) RecordCommand(identifier, command string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sid, ok := m.resolveLocked(identifier)
	if !ok {
		return false
	}
	m.history[sid] = append(m.history[sid], HistoryEntry{
		Command:   command,
		Timestamp: time.Now(),
	})
	if m.metrics != nil {
		m.metrics.CommandsTotal.Inc()
	}
	return true
}

// History returns the session's command history in submission order.
func (m *Manager) History(identifier string) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sid, ok := m.resolveLocked(identifier)
	if !ok {
		return nil, ErrNotFound
	}
	// Non-nil even when empty, so the HTTP layer serializes [] rather
	// than null.
	out := make([]HistoryEntry, 0, len(m.history[sid]))
	return append(out, m.history[sid]...), nil
}

// Kill closes a session and removes it, its metadata, and its history in
// one step. Returns false when the identifier resolves to nothing.
func (m *Manager) Kill(identifier string) bool {
	m.mu.Lock()
	sid, ok := m.resolveLocked(identifier)
	if !ok {
		m.mu.Unlock()
		return false
	}
	s := m.sessions[sid]
	delete(m.sessions, sid)
	delete(m.meta, sid)
	delete(m.history, sid)
	for i, oid := range m.order {
		if oid == sid {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	_ = s.Close()

	if m.metrics != nil {
		m.metrics.SessionsKilled.Inc()
		m.metrics.SessionsActive.Dec()
	}
	m.logger.Info("session killed", zap.String("session_id", sid))
	return true
}

// CleanupAll closes every session; used at process shutdown.
func (m *Manager) CleanupAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.meta = make(map[string]*metadata)
	m.history = make(map[string][]HistoryEntry)
	m.order = nil
	m.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
		if m.metrics != nil {
			m.metrics.SessionsActive.Dec()
		}
	}
	if len(sessions) > 0 {
		m.logger.Info("all sessions closed", zap.Int("count", len(sessions)))
	}
}

// SanitizeName reduces a session name to a filesystem-safe log-path
// component: letters, digits, dashes, and underscores survive; spaces
// become underscores; everything else is dropped.
func SanitizeName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			sb.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(sb.String()), " ", "_")
}
