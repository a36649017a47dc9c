// Package terminal implements the session core of the service: PTY-backed
// interactive shell sessions, managed by a registry and drained through
// bounded output buffers.
//
// Architecture:
//   - Each Session owns one PTY handle and one background reader goroutine
//   - The reader scrubs terminal-control noise from raw output before
//     buffering it and appending it to the session transcript
//   - Output is pulled on demand: Drain consumes, Peek inspects
//   - The Manager owns all sessions and resolves callers' identifiers
//     (opaque id or human name) under a single lock
//
// Output is a text stream, not a rendered screen: the filter strips query
// responses and mode chatter but performs no terminal emulation.
//
// Example Usage:
//
//	mgr := terminal.NewManager(terminal.DefaultConfig(), logger)
//	desc, err := mgr.Create("build", 120, 30, "")
//	// → descriptor with id, name, log path
//
//	sess, _ := mgr.Get(desc.ID)
//	out, err := sess.SendCommand("ls -la", 0)
//	// → accumulated output after the settle interval
//
//	mgr.Kill(desc.ID)
package terminal
