// Package pg manages the PostgreSQL connection pool for the billing service.
//
// It wraps pgx v5 with environment-backed configuration, retrying
// connection establishment on startup, applying goose migrations, and
// exposing a healthcheck closure for the HTTP health endpoint.
package pg
