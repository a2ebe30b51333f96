package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnauthenticated is returned when no valid identity accompanies a request.
	ErrUnauthenticated = errors.New("application: unauthenticated")
	// ErrForbidden is returned when the acting principal lacks permission for an operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrSlotUnavailable is returned when a booking would overlap an active booking.
	ErrSlotUnavailable = errors.New("application: time slot unavailable")
	// ErrCapacityExceeded is returned when a booking's student count exceeds the room capacity.
	ErrCapacityExceeded = errors.New("application: room capacity exceeded")
	// ErrNoFieldsProvided is returned when a partial update carries no fields.
	ErrNoFieldsProvided = errors.New("application: no fields provided")
	// ErrAlreadyExists is returned when a unique attribute is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when an email and password pair does not match.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrRoomInUse is returned when deleting a room that active bookings still reference.
	ErrRoomInUse = errors.New("application: room has active bookings")
	// ErrSelfDeletion is returned when an administrator tries to delete their own account.
	ErrSelfDeletion = errors.New("application: cannot delete own account")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// SlotConflictError reports the bookings that block a requested slot.
// It matches ErrSlotUnavailable with errors.Is.
type SlotConflictError struct {
	Conflicts []Booking
}

func (e *SlotConflictError) Error() string {
	ids := make([]string, 0, len(e.Conflicts))
	for _, b := range e.Conflicts {
		ids = append(ids, b.ID)
	}
	return fmt.Sprintf("%v: conflicts with %s", ErrSlotUnavailable, strings.Join(ids, ", "))
}

func (e *SlotConflictError) Unwrap() error {
	return ErrSlotUnavailable
}
