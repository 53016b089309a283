package models

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument signals failed input validation.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDuplicateResource signals a name+version conflict.
	ErrDuplicateResource = errors.New("resource with this name and version already exists")
	// ErrSlugTaken signals a category slug collision.
	ErrSlugTaken = errors.New("slug already in use")
	// ErrInvalidTransition signals a workflow action not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadySubscribed signals a confirmed subscription for the same email.
	ErrAlreadySubscribed = errors.New("already subscribed")
	// ErrJobNotFound signals an unknown or expired contact job.
	ErrJobNotFound = errors.New("contact job not found")
	// ErrJobFinished signals a cancel request for a job that already stopped.
	ErrJobFinished = errors.New("contact job already finished")
)
