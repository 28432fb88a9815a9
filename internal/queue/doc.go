// Package queue defines the submission queue domain model and the storage
// contract shared by its backends.
//
// An Item is one pending filing obligation; a Job is one batch of items handed
// to the downstream submitter. Store implementations (sqlite, postgres)
// persist both and provide the atomic conditional claim the scheduler relies
// on for multi-process safety: a claim either converts every member of a
// batch or none of them.
//
// Treat this package as the single source of truth for queue semantics; when
// you add statuses or fields, update both backend schemas and bump their
// schema versions.
package queue
