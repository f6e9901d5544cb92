package model

import "errors"

var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvalidRange       = errors.New("invalid range")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrForbidden          = errors.New("operation not permitted")
	ErrNotConfirmed       = errors.New("operation not confirmed")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
