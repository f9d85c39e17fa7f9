// Package redis establishes the Redis connection used for cross-replica
// coordination, primarily the distributed lock that keeps the expiry
// sweeper running on a single instance at a time.
package redis
