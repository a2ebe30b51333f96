package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

var (
	userCounter    uint64
	roomCounter    uint64
	bookingCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record that can be materialised
// for application or persistence tests.
type UserFixture struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         scheduler.Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic instructor fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Name:         fmt.Sprintf("Instructor %03d", idx),
		Email:        fmt.Sprintf("%s@school.example", id),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		Role:         scheduler.RoleInstructor,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserName overrides the generated name.
func WithUserName(name string) UserOption {
	return func(f *UserFixture) {
		f.Name = name
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserRole sets the role on the generated fixture.
func WithUserRole(role scheduler.Role) UserOption {
	return func(f *UserFixture) {
		f.Role = role
	}
}

// WithUserTimestamps sets both created and updated timestamps on the fixture.
func WithUserTimestamps(created, updated time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:        f.ID,
		Name:      f.Name,
		Email:     f.Email,
		Role:      f.Role,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Credentials returns the fixture as application.UserCredentials.
func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{
		User:         f.Application(),
		PasswordHash: f.PasswordHash,
	}
}

// Principal returns an application.Principal derived from the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, Role: f.Role, Email: f.Email, Name: f.Name}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Name:         f.Name,
		Email:        f.Email,
		PasswordHash: f.PasswordHash,
		Role:         string(f.Role),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic classroom record.
type RoomFixture struct {
	ID        string
	Name      string
	Capacity  int
	Location  string
	Status    string
	Equipment []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a deterministic room fixture with optional overrides.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	id := fmt.Sprintf("room-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := RoomFixture{
		ID:        id,
		Name:      fmt.Sprintf("Room %03d", idx),
		Capacity:  20 + int(idx%4)*10,
		Location:  "Main Building",
		Status:    application.RoomStatusAvailable,
		Equipment: []string{"projector", "whiteboard"},
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) {
		f.ID = id
	}
}

// WithRoomName overrides the generated room name.
func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) {
		f.Name = name
	}
}

// WithRoomCapacity overrides the generated capacity.
func WithRoomCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) {
		f.Capacity = capacity
	}
}

// WithRoomStatus overrides the generated status.
func WithRoomStatus(status string) RoomOption {
	return func(f *RoomFixture) {
		f.Status = status
	}
}

// WithRoomEquipment replaces the generated equipment list.
func WithRoomEquipment(items ...string) RoomOption {
	return func(f *RoomFixture) {
		f.Equipment = append([]string(nil), items...)
	}
}

// Application returns the fixture as an application.Room value.
func (f RoomFixture) Application() application.Room {
	return application.Room{
		ID:        f.ID,
		Name:      f.Name,
		Capacity:  f.Capacity,
		Location:  f.Location,
		Status:    f.Status,
		Equipment: append([]string(nil), f.Equipment...),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Room value.
func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{
		ID:        f.ID,
		Name:      f.Name,
		Capacity:  f.Capacity,
		Location:  f.Location,
		Status:    f.Status,
		Equipment: append([]string(nil), f.Equipment...),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// ---------------------------- Booking fixtures ----------------------------

// BookingFixture represents a deterministic booking record.
type BookingFixture struct {
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
}

// BookingOption configures the generated booking fixture.
type BookingOption func(*BookingFixture)

// NewBookingFixture returns a deterministic pending booking from 09:00 to
// 10:30 on 2024-01-08 with optional overrides.
func NewBookingFixture(opts ...BookingOption) BookingFixture {
	idx := atomic.AddUint64(&bookingCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Second)
	fixture := BookingFixture{
		ID:           fmt.Sprintf("booking-%03d", idx),
		UserID:       "user-001",
		RoomID:       "room-001",
		Date:         "2024-01-08",
		StartTime:    "09:00",
		EndTime:      "10:30",
		Duration:     1.5,
		ClassName:    fmt.Sprintf("Class %03d", idx),
		StudentCount: 10,
		Status:       scheduler.StatusPending,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBookingID overrides the generated booking ID.
func WithBookingID(id string) BookingOption {
	return func(f *BookingFixture) {
		f.ID = id
	}
}

// WithBookingOwner sets the owning user.
func WithBookingOwner(userID string) BookingOption {
	return func(f *BookingFixture) {
		f.UserID = userID
	}
}

// WithBookingRoom sets the booked room.
func WithBookingRoom(roomID string) BookingOption {
	return func(f *BookingFixture) {
		f.RoomID = roomID
	}
}

// WithBookingSlot sets the date and times and derives the duration.
func WithBookingSlot(date, start, end string) BookingOption {
	return func(f *BookingFixture) {
		f.Date = date
		f.StartTime = start
		f.EndTime = end
		if interval, err := scheduler.ParseInterval(start, end); err == nil {
			f.Duration = interval.DurationHours()
		}
	}
}

// WithBookingStatus overrides the lifecycle status.
func WithBookingStatus(status scheduler.Status) BookingOption {
	return func(f *BookingFixture) {
		f.Status = status
	}
}

// WithBookingStudentCount overrides the expected attendance.
func WithBookingStudentCount(count int) BookingOption {
	return func(f *BookingFixture) {
		f.StudentCount = count
	}
}

// WithBookingSubject sets the optional subject.
func WithBookingSubject(subject string) BookingOption {
	return func(f *BookingFixture) {
		f.Subject = &subject
	}
}

// WithBookingNotes sets the optional notes.
func WithBookingNotes(notes string) BookingOption {
	return func(f *BookingFixture) {
		f.Notes = &notes
	}
}

// Application returns the fixture as an application.Booking value.
func (f BookingFixture) Application() application.Booking {
	return application.Booking{
		ID:           f.ID,
		UserID:       f.UserID,
		RoomID:       f.RoomID,
		Date:         f.Date,
		StartTime:    f.StartTime,
		EndTime:      f.EndTime,
		Duration:     f.Duration,
		ClassName:    f.ClassName,
		Subject:      copyStringPtr(f.Subject),
		StudentCount: f.StudentCount,
		Status:       f.Status,
		Notes:        copyStringPtr(f.Notes),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Booking value.
func (f BookingFixture) Persistence() persistence.Booking {
	return persistence.Booking{
		ID:           f.ID,
		UserID:       f.UserID,
		RoomID:       f.RoomID,
		Date:         f.Date,
		StartTime:    f.StartTime,
		EndTime:      f.EndTime,
		Duration:     f.Duration,
		ClassName:    f.ClassName,
		Subject:      copyStringPtr(f.Subject),
		StudentCount: f.StudentCount,
		Status:       string(f.Status),
		Notes:        copyStringPtr(f.Notes),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Input returns the fixture as an application.BookingInput.
func (f BookingFixture) Input() application.BookingInput {
	return application.BookingInput{
		RoomID:       f.RoomID,
		Date:         f.Date,
		StartTime:    f.StartTime,
		EndTime:      f.EndTime,
		ClassName:    f.ClassName,
		Subject:      copyStringPtr(f.Subject),
		StudentCount: f.StudentCount,
		Notes:        copyStringPtr(f.Notes),
	}
}

func copyStringPtr(v *string) *string {
	if v == nil {
		return nil
	}
	value := *v
	return &value
}
