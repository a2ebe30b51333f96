package application

import (
	"time"

	"github.com/example/room-booking/internal/scheduler"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Role   scheduler.Role
	Email  string
	Name   string
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == scheduler.RoleAdmin
}

// Authenticated reports whether the principal carries an identity.
func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

// Actor converts the principal into the identity used by lifecycle guards.
func (p Principal) Actor() scheduler.Actor {
	return scheduler.Actor{ID: p.UserID, Role: p.Role}
}

// RoomStatusAvailable is the default status of a new room.
const RoomStatusAvailable = "available"

// Room represents a bookable room catalog entry.
type Room struct {
	ID        string
	Name      string
	Capacity  int
	Location  string
	Status    string
	Equipment []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomInput captures caller provided room fields for creation.
type RoomInput struct {
	Name      string
	Capacity  int
	Location  string
	Status    string
	Equipment []string
}

// RoomUpdate carries the room fields a caller supplied. Nil fields are left untouched.
type RoomUpdate struct {
	Name      *string
	Capacity  *int
	Location  *string
	Status    *string
	Equipment *[]string
}

// IsEmpty reports whether no field was supplied.
func (u RoomUpdate) IsEmpty() bool {
	return u.Name == nil && u.Capacity == nil && u.Location == nil && u.Status == nil && u.Equipment == nil
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Update    RoomUpdate
}

// User represents an account exposed by the application services.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      scheduler.Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserCredentials pairs a user with the stored password hash.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// UserInput captures caller provided user attributes for creation.
type UserInput struct {
	Name     string
	Email    string
	Password string
	Role     scheduler.Role
}

// UserUpdate carries the user fields a caller supplied. Nil fields are left untouched.
type UserUpdate struct {
	Name     *string
	Email    *string
	Password *string
	Role     *scheduler.Role
}

// IsEmpty reports whether no field was supplied.
func (u UserUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.Password == nil && u.Role == nil
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update a user.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Update    UserUpdate
}

// Booking represents a room reservation together with room and owner display fields.
type Booking struct {
	ID           string
	UserID       string
	RoomID       string
	Date         string
	StartTime    string
	EndTime      string
	Duration     float64
	ClassName    string
	Subject      *string
	StudentCount int
	Status       scheduler.Status
	Notes        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Room  BookingRoom
	Owner BookingOwner
}

// BookingRoom holds the room fields joined onto a booking.
type BookingRoom struct {
	Name     string
	Capacity int
	Location string
}

// BookingOwner holds the owner fields joined onto a booking.
type BookingOwner struct {
	Name  string
	Email string
}

// Interval parses the booking's stored start and end times.
func (b Booking) Interval() (scheduler.Interval, error) {
	return scheduler.ParseInterval(b.StartTime, b.EndTime)
}

// BookingInput captures caller provided booking fields for creation.
type BookingInput struct {
	RoomID       string
	Date         string
	StartTime    string
	EndTime      string
	Duration     *float64
	ClassName    string
	Subject      *string
	StudentCount int
	Notes        *string
}

// BookingUpdate carries the booking fields a caller supplied. Nil fields are
// left untouched; a supplied empty Subject or Notes clears the value.
type BookingUpdate struct {
	RoomID       *string
	Date         *string
	StartTime    *string
	EndTime      *string
	Duration     *float64
	ClassName    *string
	Subject      *string
	StudentCount *int
	Notes        *string
}

// IsEmpty reports whether no field was supplied.
func (u BookingUpdate) IsEmpty() bool {
	return u.RoomID == nil && u.Date == nil && u.StartTime == nil && u.EndTime == nil &&
		u.Duration == nil && u.ClassName == nil && u.Subject == nil && u.StudentCount == nil &&
		u.Notes == nil
}

// TouchesSlot reports whether any of room, date, start or end was supplied.
func (u BookingUpdate) TouchesSlot() bool {
	return u.RoomID != nil || u.Date != nil || u.StartTime != nil || u.EndTime != nil
}

// BookingFilter narrows booking listings. Empty fields are not applied.
type BookingFilter struct {
	UserID string
	RoomID string
	Status string
	Date   string
}

// SlotCheck inspects the active bookings of the target room and date from
// inside the write transaction. A non-nil error aborts the write.
type SlotCheck func(existing []Booking) error

// BookingTx serves reads from inside an open booking write transaction.
type BookingTx interface {
	ActiveBookings(roomID, date string) ([]Booking, error)
	GetRoom(id string) (Room, error)
}

// BookingMutation derives the booking to store from the row read inside the
// write transaction. A non-nil error aborts the write.
type BookingMutation func(current Booking, tx BookingTx) (Booking, error)

// CreateBookingParams wraps the data required to create a booking.
type CreateBookingParams struct {
	Principal Principal
	Input     BookingInput
}

// UpdateBookingParams wraps the data required to update a booking.
type UpdateBookingParams struct {
	Principal Principal
	BookingID string
	Update    BookingUpdate
}

// UpdateBookingStatusParams wraps the data required to move a booking through its lifecycle.
type UpdateBookingStatusParams struct {
	Principal Principal
	BookingID string
	Status    string
}

// ListBookingsParams wraps the data required to list bookings.
type ListBookingsParams struct {
	Principal Principal
	Filter    BookingFilter
}

// AvailabilityParams wraps an availability query for one room and slot.
type AvailabilityParams struct {
	Principal        Principal
	RoomID           string
	Date             string
	StartTime        string
	EndTime          string
	ExcludeBookingID string
}

// Availability is the answer to an availability query.
type Availability struct {
	Available bool
	Conflicts []Booking
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User      User
	Token     string
	ExpiresAt time.Time
}

// RegisterParams captures a self-registration request.
type RegisterParams struct {
	Name     string
	Email    string
	Password string
}

// AdminStats is the administrator dashboard.
type AdminStats struct {
	TotalRooms        int
	TotalUsers        int
	TotalBookings     int
	TodaysBookings    int
	PendingBookings   int
	AvailableRooms    int
	ActiveInstructors int
	BookingsByStatus  map[string]int
	RecentBookings    []Booking
	WeeklyBookings    []DailyCount
}

// DailyCount is the number of bookings on one date.
type DailyCount struct {
	Date  string
	Count int
}

// InstructorStats is an instructor's own dashboard.
type InstructorStats struct {
	TotalBookings     int
	UpcomingBookings  int
	ConfirmedBookings int
	PendingBookings   int
	NextBooking       *Booking
	RecentBookings    []Booking
}
