// Package service holds the ingestion, check-in, event and auth use cases.
// Services depend on small interfaces rather than concrete repositories so
// they can be exercised with in-memory fakes.
package service

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/iliyamo/event-checkin/internal/formprovider"
	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/submission"
)

var (
	// ErrValidation marks a request missing a required field.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound means no ticket matches the identifier.
	ErrNotFound = errors.New("ticket not found")
	// ErrWrongEvent means a ticket matches the identifier but belongs to
	// another event than the one supplied.
	ErrWrongEvent = errors.New("ticket may be for a different event")
	// ErrAlreadyCheckedIn means the ticket was consumed before.
	ErrAlreadyCheckedIn = errors.New("ticket already checked in")
	// ErrDependencyFailure means QR generation or email dispatch failed
	// after the ticket was stored.
	ErrDependencyFailure = errors.New("ticket issuance failed")
	// ErrMalformedPayload means the webhook body is not an object.
	ErrMalformedPayload = submission.ErrMalformedPayload
	// ErrEventNotFound means no event has the given id.
	ErrEventNotFound = errors.New("event not found")
	// ErrInvalidCredentials is returned by Login for any bad combination.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrProviderNotConfigured means event sync has no form-provider API key.
	ErrProviderNotConfigured = formprovider.ErrNotConfigured
)

// ValidationError lists the offending fields.
type ValidationError struct {
	Fields validation.Errors
}

func (e *ValidationError) Error() string { return e.Fields.Error() }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// validationErr wraps a non-nil ozzo result as a ValidationError.
func validationErr(errs validation.Errors) error {
	if err := errs.Filter(); err != nil {
		if ve, ok := err.(validation.Errors); ok {
			return &ValidationError{Fields: ve}
		}
		return err
	}
	return nil
}

// AlreadyCheckedInError carries the ticket as stored so the door can see
// who was admitted and when.
type AlreadyCheckedInError struct {
	Guest model.Guest
}

func (e *AlreadyCheckedInError) Error() string {
	at := "unknown time"
	if e.Guest.CheckInTime != nil {
		at = e.Guest.CheckInTime.Format(time.RFC3339)
	}
	return fmt.Sprintf("ticket %s already checked in at %s (%s)", e.Guest.InvoiceNo, at, e.Guest.Name)
}

func (e *AlreadyCheckedInError) Is(target error) bool { return target == ErrAlreadyCheckedIn }

// DependencyError reports which issuance stage failed.
type DependencyError struct {
	Stage string // "qr" or "email"
	Err   error
}

func (e *DependencyError) Error() string { return fmt.Sprintf("issuance %s: %v", e.Stage, e.Err) }

func (e *DependencyError) Unwrap() error { return e.Err }

func (e *DependencyError) Is(target error) bool { return target == ErrDependencyFailure }
