package queue

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an item or job lookup matches nothing.
var ErrNotFound = errors.New("queue: not found")

// ErrPartialClaim is the sentinel matched by errors.Is for claims rejected
// because a concurrent scheduler took part of the batch first. The concrete
// error is always a *PartialClaimError.
var ErrPartialClaim = errors.New("queue: partial claim")

// ErrSchemaMismatch is returned when a store opens a database created with a
// different schema version.
var ErrSchemaMismatch = errors.New("queue: schema version mismatch")

// PartialClaimError reports a claim that could not convert every member of a
// batch. The transaction is rolled back in full; no job row persists and the
// members already taken by the competing claim keep their winner.
type PartialClaimError struct {
	BatchID   string
	Requested int
	Claimed   int
}

func (e *PartialClaimError) Error() string {
	return fmt.Sprintf("batch %s: claimed %d of %d items; remainder taken by a concurrent scheduler", e.BatchID, e.Claimed, e.Requested)
}

// Is reports ErrPartialClaim so callers can match without the concrete type.
func (e *PartialClaimError) Is(target error) bool {
	return target == ErrPartialClaim
}

// IsPartialClaim reports whether err is a partial-claim rejection.
func IsPartialClaim(err error) bool {
	return errors.Is(err, ErrPartialClaim)
}
