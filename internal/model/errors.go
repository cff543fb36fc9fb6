package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrBackend is returned when an AI backend call fails.
	ErrBackend = errors.New("ai backend failed")
	// ErrOAuth is returned when an OAuth token exchange or refresh fails.
	ErrOAuth = errors.New("oauth flow failed")
)
