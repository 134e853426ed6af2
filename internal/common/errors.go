// Package common defines the sentinel errors shared by the repository,
// service and transport layers. Callers should match them with errors.Is.
package common

import "errors"

var (
	// ErrValidation reports a missing or malformed input field.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound reports that the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized reports a missing or failed authentication.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden reports an authenticated caller acting on an entity it does not own.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict reports a uniqueness violation or an illegal state transition.
	ErrConflict = errors.New("conflict")
	// ErrStorage reports a failure of the backing store.
	ErrStorage = errors.New("storage failure")
	// ErrInvalidToken reports a malformed, expired or badly signed access token.
	ErrInvalidToken = errors.New("invalid token")
)
