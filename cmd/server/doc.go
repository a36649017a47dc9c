// Command server runs the terminal session service: an HTTP API for
// creating, driving, and tearing down PTY-backed interactive shell
// sessions.
//
//	go run ./cmd/server -port 8000
//
// Configuration comes from the environment (see internal/infrastructure/
// config); the flags above override the most commonly changed values.
package main
