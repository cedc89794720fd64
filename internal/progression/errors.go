package progression

import (
	"errors"
	"fmt"

	"trailQuestAPI/internal/types/progress"
)

var (
	// ErrNotFound: challenge, progress record, or badge does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotJoined: activity logged without a progress record for the challenge.
	ErrNotJoined = errors.New("challenge not joined")
	// ErrInvalidInput: non-positive distance, negative elevation, backdated
	// activity date, or an unknown streak mode.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict: concurrent-write contention that survived retries.
	ErrConflict = errors.New("write conflict")
)

// InvalidStateError rejects an operation against a record whose status does
// not permit it, naming the current status so callers can surface it.
type InvalidStateError struct {
	Status progress.Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("challenge is %s, no further activity accepted", e.Status)
}

// ChallengeFailedError is a modeled business outcome, not a fault: a
// STRICT-mode streak break. The progress record has already been persisted
// with status FAILED and the triggering log was not applied.
type ChallengeFailedError struct {
	Progress *progress.UserChallengeProgress
}

func (e *ChallengeFailedError) Error() string {
	return "streak broken: challenge failed"
}
