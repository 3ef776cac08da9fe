package primary

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned when a batch run already holds the run lock.
var ErrRunInProgress = errors.New("compliance run already in progress")

// ErrEnrollmentNotFound is returned for enrollment IDs the training system does not know.
var ErrEnrollmentNotFound = errors.New("enrollment not found")

// ErrNoRuns is returned when no batch run has finished yet.
var ErrNoRuns = errors.New("no compliance run has finished yet")

// ErrInvalidRequest is wrapped by errors caused by malformed caller input.
var ErrInvalidRequest = errors.New("invalid request")

// FactFetchError reports that compliance facts could not be fetched for one enrollment.
type FactFetchError struct {
	EnrollmentID string
	Err          error
}

func (e *FactFetchError) Error() string {
	return fmt.Sprintf("failed to fetch facts for enrollment %s: %v", e.EnrollmentID, e.Err)
}

func (e *FactFetchError) Unwrap() error { return e.Err }

// InvalidStateError reports an operation attempted against a record whose
// level forbids it.
type InvalidStateError struct {
	EnrollmentID string
	Level        string
	Op           string
	Reason       string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s enrollment %s at level %s: %s", e.Op, e.EnrollmentID, e.Level, e.Reason)
}

// PersistenceConflictError reports that optimistic writes kept losing to
// concurrent writers.
type PersistenceConflictError struct {
	EnrollmentID string
	Attempts     int
}

func (e *PersistenceConflictError) Error() string {
	return fmt.Sprintf("enrollment %s: write conflict persisted after %d attempts", e.EnrollmentID, e.Attempts)
}
