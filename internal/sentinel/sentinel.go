package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and clients return these
// (optionally wrapped) so services can translate them into domain errors.
//
// - ErrNotFound: entity does not exist in store or on the mirror
// - ErrConflict: optimistic concurrency check failed; the operation may be retried
// - ErrAlreadyUsed: unique key (transaction id, signature) already recorded
// - ErrUnavailable: remote service temporarily unavailable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
