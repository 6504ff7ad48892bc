package domain

import "errors"

var (
	ErrPollNotFound   = errors.New("poll not found")
	ErrPollClosed     = errors.New("poll closed")
	ErrDuplicateVote  = errors.New("duplicate vote")
	ErrInvalidOptions = errors.New("poll must have between 2 and 10 options")
	ErrInvalidOption  = errors.New("option index out of range")
	ErrRoleRequired   = errors.New("role ping requires a role reference")
	ErrNegativeAmount = errors.New("award amount must not be negative")
	ErrNotPrivileged  = errors.New("member is not privileged")
)
