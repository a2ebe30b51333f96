package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusModified  Status = "modified"
)

// Role identifies what an actor is allowed to do.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
)

var (
	// ErrInvalidStatus is returned for status values outside the known set.
	ErrInvalidStatus = errors.New("scheduler: invalid status")
	// ErrInvalidTransition is returned when the lifecycle has no edge between two states.
	ErrInvalidTransition = errors.New("scheduler: invalid status transition")
	// ErrTransitionForbidden is returned when the edge exists but the actor may not take it.
	ErrTransitionForbidden = errors.New("scheduler: transition not permitted for actor")
	// ErrInvalidRole is returned for role values outside the known set.
	ErrInvalidRole = errors.New("scheduler: invalid role")
)

// Statuses lists every known status in lifecycle order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusModified}

// ParseStatus validates a status value. Only the exact lower-case names are
// accepted.
func ParseStatus(value string) (Status, error) {
	status := Status(value)
	switch status {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusModified:
		return status, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
}

// ParseRole validates a role value, ignoring case and surrounding space.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	switch role {
	case RoleAdmin, RoleInstructor:
		return role, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, value)
}

// Active reports whether a booking in this status still holds its slot.
func (s Status) Active() bool {
	return s != StatusCancelled
}

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanManage reports whether the actor may act on a booking owned by ownerID.
func CanManage(actor Actor, ownerID string) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.ID != "" && actor.ID == ownerID
}

type guard func(actor Actor, ownerID string) bool

func adminOnly(actor Actor, _ string) bool { return actor.IsAdmin() }

var transitions = map[Status]map[Status]guard{
	StatusPending: {
		StatusConfirmed: adminOnly,
		StatusCancelled: CanManage,
		StatusModified:  CanManage,
	},
	StatusConfirmed: {
		StatusCancelled: CanManage,
		StatusModified:  CanManage,
	},
	StatusModified: {
		StatusConfirmed: adminOnly,
		StatusCancelled: CanManage,
	},
	StatusCancelled: {},
}

// CheckTransition validates moving a booking owned by ownerID from one status to another.
// Unknown edges fail with ErrInvalidTransition whatever the actor's role; known edges
// whose guard rejects the actor fail with ErrTransitionForbidden.
func CheckTransition(from, to Status, actor Actor, ownerID string) error {
	edges, ok := transitions[from]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, from)
	}
	if _, known := transitions[to]; !known {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	allowed, ok := edges[to]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if !allowed(actor, ownerID) {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionForbidden, from, to)
	}
	return nil
}
