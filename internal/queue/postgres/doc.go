// Package postgres is the queue.Store backend for deployments where several
// daemon instances share one queue. Claims rely on row locks and conditional
// updates rather than a database-wide write lock; only serialization conflicts
// are retried, everything else surfaces immediately.
package postgres
