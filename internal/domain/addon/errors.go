package addon

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyName         = errors.New("addon name cannot be empty")
	ErrDuplicate         = errors.New("addon already registered")
	ErrUnknown           = errors.New("unknown addon")
	ErrAccessBlocked     = errors.New("addon access blocked during restore")
	ErrRestoreInProgress = errors.New("addon restore already in progress")
	ErrNotRestoring      = errors.New("addon restore called outside the restore window")
)

// DuplicateError reports a second registration under an existing name
type DuplicateError struct {
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("addon %q already registered", e.Name)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// UnknownError reports a lookup of a name that was never registered
type UnknownError struct {
	Name       string
	Suggestion string
}

func (e *UnknownError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown addon %q (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unknown addon %q", e.Name)
}

func (e *UnknownError) Is(target error) bool { return target == ErrUnknown }

// AccessBlockedError reports a lookup made while addon state is being restored
type AccessBlockedError struct {
	Name string
}

func (e *AccessBlockedError) Error() string {
	return fmt.Sprintf("addon %q cannot be accessed while the session is restoring addon state", e.Name)
}

func (e *AccessBlockedError) Is(target error) bool { return target == ErrAccessBlocked }

// RestoreError wraps the failure of one addon's SetState
type RestoreError struct {
	Name string
	Err  error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("restore addon %q: %v", e.Name, e.Err)
}

func (e *RestoreError) Unwrap() error { return e.Err }
