package app

import "errors"

var (
	// ErrAlreadyAppealed indicates the violation already has an appeal.
	ErrAlreadyAppealed = errors.New("appeal already exists for this violation")
	// ErrInvalidTransition indicates a status change the lifecycle tables reject.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the caller does not own the entity.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation indicates missing or malformed input fields.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates a failed login attempt.
	ErrInvalidCredentials = errors.New("invalid email or password")
)
