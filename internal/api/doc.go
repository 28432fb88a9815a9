// Package api holds the transport representations shared by the IPC
// surface, the monitor endpoints, and the CLI front-end.
//
// Types here mirror the queue and scheduler structs but carry JSON tags
// and pre-rendered timestamps so every consumer serializes queue state
// the same way. Converter functions translate from the internal types;
// nothing in this package mutates the queue. QueueService wraps a store
// with the read-only calls the front-ends need, so handlers do not
// depend on a full queue.Store.
package api
