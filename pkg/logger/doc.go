// Package logger builds configured slog.Logger instances.
//
// The factory supports JSON output for production log aggregation and
// text output for local development, plus attribute helpers for the
// identifiers that matter in billing flows (user, plan, subscription,
// order). All services log through slog so handlers can be swapped
// without touching call sites.
package logger
