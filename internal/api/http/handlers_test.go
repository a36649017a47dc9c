package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/termhub/internal/infrastructure/logging"
	"github.com/GriffinCanCode/termhub/internal/terminal"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mgr := terminal.NewManager(terminal.Config{
		Shell:  "/bin/sh",
		Cols:   80,
		Rows:   24,
		LogDir: t.TempDir(),
		Timing: terminal.Timing{
			StartupSettle: 200 * time.Millisecond,
			InterruptEcho: 50 * time.Millisecond,
			CommandSettle: 400 * time.Millisecond,
			InputSettle:   50 * time.Millisecond,
			CloseGrace:    time.Second,
		},
	}, zap.NewNop())
	t.Cleanup(mgr.CleanupAll)

	h := NewHandlers(mgr, &logging.Logger{Logger: zap.NewNop()})

	r := gin.New()
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.POST("/sessions", h.CreateSession)
	r.GET("/sessions", h.ListSessions)
	r.DELETE("/sessions/:id", h.KillSession)
	r.POST("/sessions/:id/command", h.SendCommand)
	r.POST("/sessions/:id/input", h.SendInput)
	r.GET("/sessions/:id/output", h.GetOutput)
	r.GET("/sessions/:id/history", h.GetHistory)
	r.POST("/sessions/:id/resize", h.Resize)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	r := testRouter(t)

	w := do(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
}

func TestCreateListKillFlow(t *testing.T) {
	r := testRouter(t)

	w := do(t, r, http.MethodPost, "/sessions", gin.H{"name": "t1", "cols": 80, "rows": 24})
	require.Equal(t, http.StatusOK, w.Code)
	created := decode(t, w)
	assert.Equal(t, "t1", created["name"])
	assert.Equal(t, true, created["alive"])
	assert.Contains(t, created["log_path"], "t1")
	require.NotEmpty(t, created["id"])

	w = do(t, r, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, created["id"], list[0]["id"])

	// Delete resolves names as well as ids.
	w = do(t, r, http.MethodDelete, "/sessions/t1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "killed", decode(t, w)["status"])

	w = do(t, r, http.MethodGet, "/sessions", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list)

	w = do(t, r, http.MethodDelete, "/sessions/t1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateSpawnFailure(t *testing.T) {
	r := testRouter(t)

	w := do(t, r, http.MethodPost, "/sessions", gin.H{"shell_command": "/nonexistent/binary/xyz"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/sessions", nil)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list)
}

func TestSendCommandAndHistory(t *testing.T) {
	r := testRouter(t)

	w := do(t, r, http.MethodPost, "/sessions", gin.H{"name": "cmd"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/sessions/cmd/command", gin.H{"command": "echo web-hi"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["output"], "web-hi")

	w = do(t, r, http.MethodGet, "/sessions/cmd/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "echo web-hi", history[0]["command"])
}

func TestSendCommandErrors(t *testing.T) {
	r := testRouter(t)

	w := do(t, r, http.MethodPost, "/sessions/ghost/command", gin.H{"command": "ls"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	do(t, r, http.MethodPost, "/sessions", gin.H{"name": "s"})
	w = do(t, r, http.MethodPost, "/sessions/s/command", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRawInputAndOutput(t *testing.T) {
	r := testRouter(t)

	do(t, r, http.MethodPost, "/sessions", gin.H{"name": "raw"})

	// Each input drains whatever settled in its short window, so the
	// command's result may land in any of the three responses.
	var collected string

	w := do(t, r, http.MethodPost, "/sessions/raw/input", gin.H{"command": "echo via-input"})
	require.Equal(t, http.StatusOK, w.Code)
	collected += decode(t, w)["output"].(string)

	w = do(t, r, http.MethodPost, "/sessions/raw/input", gin.H{"command": "\r"})
	require.Equal(t, http.StatusOK, w.Code)
	collected += decode(t, w)["output"].(string)

	w = do(t, r, http.MethodGet, "/sessions/raw/output?timeout=0.6", nil)
	require.Equal(t, http.StatusOK, w.Code)
	collected += decode(t, w)["output"].(string)

	assert.Contains(t, collected, "via-input")

	// Raw input never lands in history, and an empty history is a JSON
	// array, not null.
	w = do(t, r, http.MethodGet, "/sessions/raw/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestGetOutputErrors(t *testing.T) {
	r := testRouter(t)

	w := do(t, r, http.MethodGet, "/sessions/ghost/output", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	do(t, r, http.MethodPost, "/sessions", gin.H{"name": "o"})
	w = do(t, r, http.MethodGet, "/sessions/o/output?timeout=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryNotFound(t *testing.T) {
	r := testRouter(t)

	w := do(t, r, http.MethodGet, "/sessions/ghost/history", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResize(t *testing.T) {
	r := testRouter(t)

	do(t, r, http.MethodPost, "/sessions", gin.H{"name": "rz"})

	w := do(t, r, http.MethodPost, "/sessions/rz/resize", gin.H{"cols": 100, "rows": 40})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "resized", decode(t, w)["status"])

	w = do(t, r, http.MethodPost, "/sessions/ghost/resize", gin.H{"cols": 100, "rows": 40})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPost, "/sessions/rz/resize", gin.H{"cols": 0, "rows": 40})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
