package persistence

import "time"

// User represents an account that can book rooms.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

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

// Booking represents a room reservation row together with the display fields
// joined from its room and owner.
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
	Status       string
	Notes        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	RoomName     string
	RoomCapacity int
	RoomLocation string
	UserName     string
	UserEmail    string
}

// StatusCount is one row of a GROUP BY status aggregation.
type StatusCount struct {
	Status string
	Count  int
}

// DateCount is one row of a GROUP BY date aggregation.
type DateCount struct {
	Date  string
	Count int
}

// DashboardTotals aggregates catalog-wide counters.
type DashboardTotals struct {
	Rooms             int
	Users             int
	Bookings          int
	BookingsOnDate    int
	PendingBookings   int
	AvailableRooms    int
	ActiveInstructors int
}

// InstructorTotals aggregates counters for a single booking owner.
type InstructorTotals struct {
	Bookings  int
	Upcoming  int
	Confirmed int
	Pending   int
}
