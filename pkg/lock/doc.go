// Package lock provides a Redis-backed distributed mutex.
//
// The billing service runs the expiry sweeper on an interval in every
// replica; the lock ensures only one replica performs a given sweep.
// Locks are held with a TTL so a crashed holder cannot block sweeps
// forever, and released with a token check so a replica never releases
// a lock it no longer owns.
package lock
