package command

import "errors"

// Command errors.
var (
	// ErrCommandNotFound indicates the referenced command does not exist.
	ErrCommandNotFound = errors.New("command: not found")

	// ErrAlreadyFinal indicates an ack against a command that has already
	// reached a terminal state. Terminal commands are never re-mutated.
	ErrAlreadyFinal = errors.New("command: already in terminal state")

	// ErrMissingTarget indicates normalization could not resolve an
	// entity target. Such a command is never enqueued.
	ErrMissingTarget = errors.New("command: missing target")

	// ErrUnsupportedAction indicates the action has no rewrite for the
	// device's domain.
	ErrUnsupportedAction = errors.New("command: unsupported action for domain")
)
