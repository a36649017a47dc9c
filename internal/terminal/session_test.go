package terminal

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testSession(t *testing.T, logPath string) *Session {
	t.Helper()
	s := newSession("term_test01", "test", 80, 24, "/bin/sh", logPath, 64, fastTiming(), zap.NewNop())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_StartTwice(t *testing.T) {
	s := testSession(t, "")
	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrAlreadyRunning)
}

func TestSession_IOBeforeStart(t *testing.T) {
	s := newSession("term_test02", "test", 80, 24, "/bin/sh", "", 64, fastTiming(), zap.NewNop())

	assert.ErrorIs(t, s.Write("ls\r"), ErrNotRunning)
	_, err := s.SendCommand("ls", 0)
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.False(t, s.Alive())
}

func TestSession_CommandEcho(t *testing.T) {
	s := testSession(t, "")
	require.NoError(t, s.Start())

	out, err := s.SendCommand("echo hi", 0)
	require.NoError(t, err)
	assert.Contains(t, out, "hi")
}

func TestSession_RawWriteThenRead(t *testing.T) {
	s := testSession(t, "")
	require.NoError(t, s.Start())

	require.NoError(t, s.Write("echo raw-path"))
	require.NoError(t, s.Write("\r"))

	out, err := s.ReadOutput(600 * time.Millisecond)
	require.NoError(t, err)
	assert.Contains(t, out, "raw-path")
}

func TestSession_LatestOutputDoesNotDrain(t *testing.T) {
	s := testSession(t, "")
	require.NoError(t, s.Start())

	require.NoError(t, s.Write("echo peek-me\r"))
	require.Eventually(t, func() bool {
		return strings.Contains(s.LatestOutput(50), "peek-me")
	}, 3*time.Second, 50*time.Millisecond)

	// Peeking left the buffer intact for a real drain.
	out, err := s.ReadOutput(0)
	require.NoError(t, err)
	assert.Contains(t, out, "peek-me")
}

func TestSession_Resize(t *testing.T) {
	s := testSession(t, "")
	require.NoError(t, s.Start())

	require.NoError(t, s.Resize(100, 40))
	cols, rows := s.Geometry()
	assert.Equal(t, 100, cols)
	assert.Equal(t, 40, rows)
}

func TestSession_CloseIdempotent(t *testing.T) {
	s := testSession(t, "")
	require.NoError(t, s.Start())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.False(t, s.Alive())
	assert.ErrorIs(t, s.Write("x"), ErrNotRunning)
	_, err := s.ReadOutput(0)
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.ErrorIs(t, s.Resize(80, 24), ErrNotRunning)
}

func TestSession_CloseWithoutStart(t *testing.T) {
	s := newSession("term_test03", "test", 80, 24, "/bin/sh", "", 64, fastTiming(), zap.NewNop())
	require.NoError(t, s.Close())
	// Closed is terminal; the session cannot be started afterwards.
	assert.ErrorIs(t, s.Start(), ErrNotRunning)
}

func TestSession_TranscriptWritten(t *testing.T) {
	logPath := t.TempDir() + "/transcript.log"
	s := testSession(t, logPath)
	require.NoError(t, s.Start())

	_, err := s.SendCommand("echo into-the-log", 0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "into-the-log")
}

func TestSession_DeathEndsLiveness(t *testing.T) {
	s := testSession(t, "")
	require.NoError(t, s.Start())

	_, err := s.SendCommand("exit", 0)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return !s.Alive() }, 3*time.Second, 50*time.Millisecond)

	// Death is not closure: the session still drains what it buffered.
	_, err = s.ReadOutput(0)
	assert.NoError(t, err)
}
