package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTrackNotFound marks a track that does not resolve in its sandbox,
	// either because it never existed or because an ancestor was removed.
	ErrTrackNotFound = errors.New("track not found")
	// ErrConflict marks a lock-state mismatch: locking a locked snapshot,
	// unlocking an unlocked one, or mutating a locked one.
	ErrConflict = errors.New("conflict")
	// ErrNotAvailable marks a project or sandbox that is not in a
	// schedulable state for the caller's rights.
	ErrNotAvailable = errors.New("not available")
	// ErrPreconditionFailed marks an expected METS file group that is absent
	// from the document, usually because the producing step never wrote
	// output in the expected layout.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrMalformedDocument marks structurally invalid METS input.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrValidation marks bad caller input (wrong step kind, empty request).
	ErrValidation = errors.New("validation error")
	// ErrTransient marks unexpected internal failures; the boundary surfaces
	// them as a generic service error.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Recoverable reports whether the caller can retry after refreshing state.
// Stale tracks and lock conflicts are recoverable; availability and
// precondition failures are terminal for the request that hit them.
func Recoverable(err error) bool {
	return errors.Is(err, ErrTrackNotFound) || errors.Is(err, ErrConflict)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
