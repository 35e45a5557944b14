package thread

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched through errors.Is.
var (
	ErrNotFound      = errors.New("comment not found")
	ErrCycle         = errors.New("ancestor chain cycle")
	ErrDuplicateID   = errors.New("duplicate comment id")
	ErrInvalidRecord = errors.New("invalid comment record")
)

// NotFoundError is returned when an operation targets an id the forest does not hold.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("comment %q not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// CycleError reports the ids forming a loop in ancestor references.
type CycleError struct {
	IDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("ancestor chain cycle: %s", strings.Join(e.IDs, " -> "))
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// DuplicateIDError reports a record whose id is already held by a resolved node.
// The first occurrence is kept.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate comment id %q", e.ID)
}

func (e *DuplicateIDError) Is(target error) bool {
	return target == ErrDuplicateID
}
