package script

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTitle     = errors.New("invalid script title")
	ErrNotFound         = errors.New("script not found")
	ErrMissingNodeTypes = errors.New("missing node types")
	ErrMalformedConfig  = errors.New("malformed script config")
)

// Title rejection reasons
const (
	ReasonEmpty     = "empty"
	ReasonDuplicate = "duplicate"
)

// InvalidTitleError reports an empty title or one already used by another
// script of the session
type InvalidTitleError struct {
	Title  string
	Reason string
}

func (e *InvalidTitleError) Error() string {
	if e.Reason == ReasonEmpty {
		return "script title cannot be empty"
	}
	return fmt.Sprintf("script title %q is already in use", e.Title)
}

func (e *InvalidTitleError) Is(target error) bool { return target == ErrInvalidTitle }

// NotFoundError reports an operation on a script the registry does not hold
type NotFoundError struct {
	ID    string
	Title string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("script %q (%s) not found in session", e.Title, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// MissingNodeTypesError reports node identifiers a flow uses that the
// session has not registered
type MissingNodeTypesError struct {
	Identifiers []string
}

func (e *MissingNodeTypesError) Error() string {
	return "missing node types: " + strings.Join(e.Identifiers, ", ")
}

func (e *MissingNodeTypesError) Is(target error) bool { return target == ErrMissingNodeTypes }

// MalformedConfigError reports a script config that cannot be decoded
type MalformedConfigError struct {
	Field  string
	Reason string
}

func (e *MalformedConfigError) Error() string {
	return fmt.Sprintf("malformed script config: %s %s", e.Field, e.Reason)
}

func (e *MalformedConfigError) Is(target error) bool { return target == ErrMalformedConfig }
