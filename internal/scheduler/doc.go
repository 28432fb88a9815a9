// Package scheduler decides which queued submissions are claimed into jobs.
//
// A scheduling pass escalates urgent items first, then partitions the
// remaining backlog by (jurisdiction, organization, submission window),
// splits each partition into portal-sized batches, and claims every batch
// atomically. A separate requeue pass re-admits failed items on an
// exponential backoff schedule and cancels items that exhausted their
// attempts. Passes are safe to run concurrently from independent processes;
// contention is resolved by the store's conditional claim, not by locks.
package scheduler
