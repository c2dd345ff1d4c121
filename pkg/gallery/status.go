package gallery

import (
	"fmt"
	"strings"
)

// ParseStatus converts a persisted or serialized status into a Status.
// Surrounding whitespace and letter case are ignored.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusReady:
		return StatusReady, nil
	case StatusFailed:
		return StatusFailed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// MustParseStatus is like ParseStatus but panics on an invalid value.
func MustParseStatus(s string) Status {
	st, err := ParseStatus(s)
	if err != nil {
		panic(err)
	}
	return st
}

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusReady, StatusFailed:
		return true
	case StatusPending:
		return false
	default:
		return false
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReady, StatusFailed:
		return true
	default:
		return false
	}
}

// canIngest checks whether a record in the given status still needs processing.
// A terminal status means the notification is a duplicate or arrived late.
func canIngest(status Status) (bool, error) {
	switch status {
	case StatusPending:
		return true, nil
	case StatusReady, StatusFailed:
		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown status %s", ErrInvalidStatus, status)
	}
}

// canTransition checks a single status transition.
func canTransition(from, to Status) error {
	switch from {
	case StatusPending:
		switch to {
		case StatusReady, StatusFailed:
			return nil
		case StatusPending:
			return fmt.Errorf("%w: record is already %s", ErrRaceLost, from)
		default:
			return fmt.Errorf("%w: unknown target status %s", ErrInvalidStatus, to)
		}
	case StatusReady, StatusFailed:
		return fmt.Errorf("%w: record is terminal (status: %s)", ErrRaceLost, from)
	default:
		return fmt.Errorf("%w: unknown status %s", ErrInvalidStatus, from)
	}
}

// CheckTransition is exported for MetadataStore implementations that evaluate
// the conditional update in process.
func CheckTransition(from, to Status) error {
	return canTransition(from, to)
}
