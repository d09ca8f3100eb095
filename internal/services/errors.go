// Package services defines the business logic of the studio back office:
// the service lifecycle, archiving, the client/employee directory,
// authentication and document handling. This file centralizes the
// service-level error values so that they can be returned by service
// methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed
// at the handler layer.
package services

import "errors"

// Lifecycle errors.
var (
	// ErrServiceNotFound indicates that the requested service does not exist.
	ErrServiceNotFound = errors.New("service not found")

	// ErrInvalidTransition is returned when a lifecycle operation is attempted
	// from a status that does not allow it. The stored status is unchanged.
	ErrInvalidTransition = errors.New("service is not in the required state")

	// ErrServiceConflict is returned when a supplied sequence or service code
	// is already taken.
	ErrServiceConflict = errors.New("service code already in use")

	// ErrInvalidDeliveryWindow is returned when the delivery date precedes
	// the request date.
	ErrInvalidDeliveryWindow = errors.New("delivery date must not precede request date")

	// ErrInvalidServiceType is returned when creating a service with an
	// unknown type.
	ErrInvalidServiceType = errors.New("unknown service type")

	// ErrNotArchived is returned by archive-only operations on a service that
	// is not archived.
	ErrNotArchived = errors.New("service is not archived")

	// ErrTransientStore wraps lock timeouts and connection failures met while
	// acquiring counters. Callers may retry.
	ErrTransientStore = errors.New("store temporarily unavailable")
)

// Directory errors.
var (
	ErrClientNotFound   = errors.New("client not found")
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrEmailTaken is returned when registering a user whose email exists.
	ErrEmailTaken = errors.New("email already registered")

	// ErrNotaryCodeTaken is returned when a notary registration code is
	// already assigned.
	ErrNotaryCodeTaken = errors.New("notary code already registered")

	// ErrInvalidRole is returned for an unknown employee role.
	ErrInvalidRole = errors.New("unknown employee role")

	// ErrInvalidPerson is returned when required identity fields are blank.
	ErrInvalidPerson = errors.New("email, given name and family name are required")
)

// Authentication errors.
var (
	// ErrInvalidCredentials covers unknown email, wrong password and a wrong
	// notary code alike.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrWeakPassword is returned when a new password is too short.
	ErrWeakPassword = errors.New("password too short")
)

// Document errors.
var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrInvalidDocumentType = errors.New("unknown document type")
	ErrEmptyDocument       = errors.New("document is empty")
	ErrDocumentTooLarge    = errors.New("document exceeds the upload limit")

	// ErrDocumentClientMismatch is returned when linking a document to a
	// service of another client.
	ErrDocumentClientMismatch = errors.New("document belongs to another client")
)
