// Package http exposes the session core over a thin JSON CRUD surface.
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/termhub/internal/infrastructure/logging"
	"github.com/GriffinCanCode/termhub/internal/terminal"
)

// Handlers bundles the HTTP endpoints over the session registry.
type Handlers struct {
	manager *terminal.Manager
	logger  *logging.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(manager *terminal.Manager, logger *logging.Logger) *Handlers {
	return &Handlers{manager: manager, logger: logger}
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	Name         string `json:"name"`
	ShellCommand string `json:"shell_command"`
	Cols         int    `json:"cols"`
	Rows         int    `json:"rows"`
}

// CommandRequest carries a line command or raw input.
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// ResizeRequest carries new terminal geometry.
type ResizeRequest struct {
	Cols int `json:"cols" binding:"required,gt=0"`
	Rows int `json:"rows" binding:"required,gt=0"`
}

// Root identifies the service.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "termhub",
		"status":  "running",
	})
}

// Health reports liveness and the session count.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": len(h.manager.List()),
	})
}

// CreateSession creates and starts a new terminal session.
func (h *Handlers) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	// Swagger UI submits the literal placeholder for untouched fields.
	command := req.ShellCommand
	if command == "string" {
		command = ""
	}

	desc, err := h.manager.Create(req.Name, req.Cols, req.Rows, command)
	if err != nil {
		h.logger.Warn("session create failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, desc)
}

// ListSessions returns descriptors for all sessions, dead ones included.
func (h *Handlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.List())
}

// KillSession closes and removes a session by id or name.
func (h *Handlers) KillSession(c *gin.Context) {
	identifier := c.Param("id")
	if !h.manager.Kill(identifier) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "killed", "id": identifier})
}

// SendCommand submits a line command (carriage return appended), records it
// in history, and returns the output accumulated over the settle interval.
func (h *Handlers) SendCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	identifier := c.Param("id")
	sess, err := h.manager.Get(identifier)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if !sess.Alive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session is dead"})
		return
	}

	h.manager.RecordCommand(identifier, req.Command)

	output, err := sess.SendCommand(req.Command, 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": output})
}

// SendInput writes raw input with no line ending appended, for interactive
// programs (editors, pagers) where single keystrokes matter. Raw input is
// never recorded in history.
func (h *Handlers) SendInput(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sess, err := h.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if !sess.Alive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session is dead"})
		return
	}

	output, err := sess.SendInput(req.Command)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": output})
}

// GetOutput drains accumulated output. An optional timeout query parameter
// (seconds) waits that long first so more output can arrive.
func (h *Handlers) GetOutput(c *gin.Context) {
	sess, err := h.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	var timeout time.Duration
	if raw := c.Query("timeout"); raw != "" {
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil || secs < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeout"})
			return
		}
		timeout = time.Duration(secs * float64(time.Second))
	}

	output, err := sess.ReadOutput(timeout)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": output})
}

// GetHistory returns the ordered command history for a session.
func (h *Handlers) GetHistory(c *gin.Context) {
	history, err := h.manager.History(c.Param("id"))
	if err != nil {
		if errors.Is(err, terminal.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, history)
}

// Resize changes a session's terminal geometry.
func (h *Handlers) Resize(c *gin.Context) {
	var req ResizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sess, err := h.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err := sess.Resize(req.Cols, req.Rows); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resized", "cols": req.Cols, "rows": req.Rows})
}
