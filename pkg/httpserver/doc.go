// Package httpserver wraps net/http with graceful shutdown, signal
// handling, env-backed configuration, and health probe handlers.
package httpserver
