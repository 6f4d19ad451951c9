package oracle

import "errors"

var (
	// ErrPaused is returned while report submission is paused.
	ErrPaused = errors.New("oracle: paused")
	// ErrNotPaused is returned when unpausing an oracle that is not paused.
	ErrNotPaused = errors.New("oracle: not paused")
	// ErrAlreadyPaused is returned when pausing an already paused oracle.
	ErrAlreadyPaused = errors.New("oracle: already paused")
	// ErrWindowViolation is returned for reports outside the admission window.
	ErrWindowViolation = errors.New("oracle: report outside admission window")
	// ErrAlreadyReported is returned on a duplicate (installation, period) key.
	ErrAlreadyReported = errors.New("oracle: report already admitted")
	// ErrCapacityNotRegistered is returned when no capacity ceiling exists
	// for the installation.
	ErrCapacityNotRegistered = errors.New("oracle: capacity not registered")
	// ErrPlausibilityViolation is returned when a measurement exceeds the
	// capacity-derived ceiling.
	ErrPlausibilityViolation = errors.New("oracle: measurement exceeds plausibility ceiling")
	// ErrUnauthorizedSigner is returned when the reporter is not in the
	// signer set.
	ErrUnauthorizedSigner = errors.New("oracle: unauthorized signer")
	// ErrSignatureInvalid is returned when signature verification fails.
	ErrSignatureInvalid = errors.New("oracle: invalid signature")
	// ErrReportNotFound is returned when a queried report does not exist.
	ErrReportNotFound = errors.New("oracle: report not found")
	// ErrInvalidCapacity is returned for a zero capacity registration.
	ErrInvalidCapacity = errors.New("oracle: invalid capacity")
	// ErrNilReport is returned when saving a nil report.
	ErrNilReport = errors.New("oracle: nil report")
)
