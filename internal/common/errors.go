package common

import (
	"errors"
	"fmt"
)

// Moderation errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")

	// Lifecycle errors
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrAppealNotAllowed      = errors.New("appeal not allowed")
	ErrAppealAlreadyResolved = errors.New("appeal already resolved")

	// 동시 수정 충돌 (version 불일치)
	ErrConflict = errors.New("concurrent modification")

	ErrAnalyzerUnavailable = errors.New("content analyzer unavailable")
)

// InvalidTransitionError carries the status a flag was in and the action that
// was refused
type InvalidTransitionError struct {
	From   string
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: cannot %s from %q", e.Action, e.From)
}

// Is matches ErrInvalidTransition
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// AppealNotAllowedError explains why an appeal could not be filed
type AppealNotAllowedError struct {
	FlagID int64
	Reason string
}

func (e *AppealNotAllowedError) Error() string {
	return fmt.Sprintf("appeal not allowed for flag %d: %s", e.FlagID, e.Reason)
}

// Is matches ErrAppealNotAllowed
func (e *AppealNotAllowedError) Is(target error) bool {
	return target == ErrAppealNotAllowed
}
