package persistence

import "context"

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	CountActiveBookings(ctx context.Context, roomID string) (int, error)
	DeleteRoom(ctx context.Context, id string) error
}

// BookingFilter narrows booking listings. Empty fields are not applied.
type BookingFilter struct {
	UserID string
	RoomID string
	Status string
	Date   string
}

// SlotCheck inspects the active bookings sharing a room and date with the row
// being written. Returning an error aborts the write.
type SlotCheck func(existing []Booking) error

// BookingReader serves reads bound to an open booking write transaction.
type BookingReader interface {
	ActiveBookings(roomID, date string) ([]Booking, error)
	GetRoom(id string) (Room, error)
}

// BookingMutation receives the stored booking as read inside the write
// transaction and returns the row to write back. Returning an error aborts the
// write.
type BookingMutation func(current Booking, tx BookingReader) (Booking, error)

// BookingRepository stores bookings. CreateBooking runs its SlotCheck and the
// insert in one transaction holding the database write lock. UpdateBooking reads
// the row, applies the mutation and writes it back under the same lock.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking, check SlotCheck) error
	UpdateBooking(ctx context.Context, id string, mutate BookingMutation) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	ListActiveBookings(ctx context.Context, roomID, date string) ([]Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

// DashboardRepository answers the aggregate queries behind the dashboards.
type DashboardRepository interface {
	Totals(ctx context.Context, today string) (DashboardTotals, error)
	BookingsByStatus(ctx context.Context, userID string) ([]StatusCount, error)
	RecentBookings(ctx context.Context, userID string, limit int) ([]Booking, error)
	BookingsPerDay(ctx context.Context, from, to string) ([]DateCount, error)
	InstructorTotals(ctx context.Context, userID, today string) (InstructorTotals, error)
	NextBooking(ctx context.Context, userID, today string) (Booking, error)
}
