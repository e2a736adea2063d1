package core

import (
	"errors"
	"fmt"

	"plantkeeper/pkg/domain"
)

// ErrNotFound is returned when reference validation fails within transactional helpers.
type ErrNotFound struct {
	Entity domain.EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

var (
	// ErrNoActor is returned by operations that must record who performed them.
	ErrNoActor = errors.New("operation requires an authenticated actor")
	// ErrAlreadyFriends is returned in strict mode when accepting a request
	// from a profile that is already a friend.
	ErrAlreadyFriends = errors.New("profiles are already friends")
	// ErrInvalidImage is returned when uploaded bytes cannot be decoded as an image.
	ErrInvalidImage = errors.New("invalid image data")
	// ErrNoImageArchive is returned when image URLs are requested without a configured archive.
	ErrNoImageArchive = errors.New("image archive not configured")
)

// CommitStage identifies where a unit of work failed.
type CommitStage string

// Commit stages in execution order.
const (
	StageApply   CommitStage = "apply"
	StageRules   CommitStage = "rules"
	StagePersist CommitStage = "persist"
)

// CommitError reports a failed unit of work. Err is the underlying cause and
// can be inspected with errors.Is and errors.As.
type CommitError struct {
	Operation string
	Stage     CommitStage
	Err       error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Operation, e.Stage, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// applyError marks errors raised by the caller's mutation so they can be told
// apart from rule evaluation failures after RunInTransaction returns.
type applyError struct{ err error }

func (e applyError) Error() string { return e.err.Error() }
func (e applyError) Unwrap() error { return e.err }

func classifyCommitError(op string, err error) error {
	if err == nil {
		return nil
	}
	var apply applyError
	if errors.As(err, &apply) {
		return &CommitError{Operation: op, Stage: StageApply, Err: apply.err}
	}
	var persist domain.PersistError
	if errors.As(err, &persist) {
		return &CommitError{Operation: op, Stage: StagePersist, Err: err}
	}
	return &CommitError{Operation: op, Stage: StageRules, Err: err}
}

// IsStage reports whether err is a CommitError raised at stage.
func IsStage(err error, stage CommitStage) bool {
	var ce *CommitError
	return errors.As(err, &ce) && ce.Stage == stage
}
