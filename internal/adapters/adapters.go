// Package adapters connects the application services to the persistence
// repositories, translating between their models.
package adapters

import (
	"context"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

// UserRepository serves both application.UserRepository and application.CredentialStore.
type UserRepository struct {
	repo persistence.UserRepository
}

// NewUserRepository wraps a persistence user repository.
func NewUserRepository(repo persistence.UserRepository) *UserRepository {
	return &UserRepository{repo: repo}
}

func (a *UserRepository) CreateUser(ctx context.Context, creds application.UserCredentials) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(creds.User, creds.PasswordHash)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, creds.User.ID)
}

func (a *UserRepository) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *UserRepository) UpdateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if passwordHash == "" {
		current, err := a.repo.GetUser(ctx, user.ID)
		if err != nil {
			return application.User{}, err
		}
		passwordHash = current.PasswordHash
	}
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, user.ID)
}

func (a *UserRepository) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

func (a *UserRepository) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

func (a *UserRepository) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{User: toApplicationUser(stored), PasswordHash: stored.PasswordHash}, nil
}

// RoomRepository serves both application.RoomRepository and application.RoomCatalog.
type RoomRepository struct {
	repo persistence.RoomRepository
}

// NewRoomRepository wraps a persistence room repository.
func NewRoomRepository(repo persistence.RoomRepository) *RoomRepository {
	return &RoomRepository{repo: repo}
}

func (a *RoomRepository) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.CreateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *RoomRepository) GetRoom(ctx context.Context, id string) (application.Room, error) {
	stored, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *RoomRepository) UpdateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.UpdateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	return a.repo.DeleteRoom(ctx, id)
}

func (a *RoomRepository) ListRooms(ctx context.Context) ([]application.Room, error) {
	models, err := a.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		rooms = append(rooms, toApplicationRoom(model))
	}
	return rooms, nil
}

func (a *RoomRepository) CountActiveBookings(ctx context.Context, roomID string) (int, error) {
	return a.repo.CountActiveBookings(ctx, roomID)
}

// BookingRepository serves application.BookingRepository.
type BookingRepository struct {
	repo persistence.BookingRepository
}

// NewBookingRepository wraps a persistence booking repository.
func NewBookingRepository(repo persistence.BookingRepository) *BookingRepository {
	return &BookingRepository{repo: repo}
}

func (a *BookingRepository) CreateBooking(ctx context.Context, booking application.Booking, check application.SlotCheck) (application.Booking, error) {
	if err := a.repo.CreateBooking(ctx, toPersistenceBooking(booking), toPersistenceCheck(check)); err != nil {
		return application.Booking{}, err
	}
	return a.GetBooking(ctx, booking.ID)
}

func (a *BookingRepository) UpdateBooking(ctx context.Context, id string, mutate application.BookingMutation) (application.Booking, error) {
	if err := a.repo.UpdateBooking(ctx, id, toPersistenceMutation(mutate)); err != nil {
		return application.Booking{}, err
	}
	return a.GetBooking(ctx, id)
}

func (a *BookingRepository) GetBooking(ctx context.Context, id string) (application.Booking, error) {
	stored, err := a.repo.GetBooking(ctx, id)
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(stored), nil
}

func (a *BookingRepository) ListBookings(ctx context.Context, filter application.BookingFilter) ([]application.Booking, error) {
	models, err := a.repo.ListBookings(ctx, persistence.BookingFilter(filter))
	if err != nil {
		return nil, err
	}
	return toApplicationBookings(models), nil
}

func (a *BookingRepository) ListActiveBookings(ctx context.Context, roomID, date string) ([]application.Booking, error) {
	models, err := a.repo.ListActiveBookings(ctx, roomID, date)
	if err != nil {
		return nil, err
	}
	return toApplicationBookings(models), nil
}

func (a *BookingRepository) DeleteBooking(ctx context.Context, id string) error {
	return a.repo.DeleteBooking(ctx, id)
}

// DashboardRepository serves application.DashboardRepository.
type DashboardRepository struct {
	repo persistence.DashboardRepository
}

// NewDashboardRepository wraps a persistence dashboard repository.
func NewDashboardRepository(repo persistence.DashboardRepository) *DashboardRepository {
	return &DashboardRepository{repo: repo}
}

func (a *DashboardRepository) Totals(ctx context.Context, today string) (application.DashboardCounts, error) {
	totals, err := a.repo.Totals(ctx, today)
	if err != nil {
		return application.DashboardCounts{}, err
	}
	return application.DashboardCounts{
		Rooms:             totals.Rooms,
		Users:             totals.Users,
		Bookings:          totals.Bookings,
		TodaysBookings:    totals.BookingsOnDate,
		PendingBookings:   totals.PendingBookings,
		AvailableRooms:    totals.AvailableRooms,
		ActiveInstructors: totals.ActiveInstructors,
	}, nil
}

func (a *DashboardRepository) BookingsByStatus(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := a.repo.BookingsByStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (a *DashboardRepository) RecentBookings(ctx context.Context, userID string, limit int) ([]application.Booking, error) {
	models, err := a.repo.RecentBookings(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return toApplicationBookings(models), nil
}

func (a *DashboardRepository) BookingsPerDay(ctx context.Context, from, to string) ([]application.DailyCount, error) {
	rows, err := a.repo.BookingsPerDay(ctx, from, to)
	if err != nil {
		return nil, err
	}
	counts := make([]application.DailyCount, 0, len(rows))
	for _, row := range rows {
		counts = append(counts, application.DailyCount{Date: row.Date, Count: row.Count})
	}
	return counts, nil
}

func (a *DashboardRepository) InstructorTotals(ctx context.Context, userID, today string) (application.InstructorCounts, error) {
	totals, err := a.repo.InstructorTotals(ctx, userID, today)
	if err != nil {
		return application.InstructorCounts{}, err
	}
	return application.InstructorCounts{
		Total:     totals.Bookings,
		Upcoming:  totals.Upcoming,
		Confirmed: totals.Confirmed,
		Pending:   totals.Pending,
	}, nil
}

func (a *DashboardRepository) NextBooking(ctx context.Context, userID, today string) (application.Booking, error) {
	stored, err := a.repo.NextBooking(ctx, userID, today)
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(stored), nil
}

func toPersistenceCheck(check application.SlotCheck) persistence.SlotCheck {
	if check == nil {
		return nil
	}
	return func(existing []persistence.Booking) error {
		return check(toApplicationBookings(existing))
	}
}

func toPersistenceMutation(mutate application.BookingMutation) persistence.BookingMutation {
	if mutate == nil {
		return nil
	}
	return func(current persistence.Booking, tx persistence.BookingReader) (persistence.Booking, error) {
		next, err := mutate(toApplicationBooking(current), bookingTx{tx: tx})
		if err != nil {
			return persistence.Booking{}, err
		}
		return toPersistenceBooking(next), nil
	}
}

// bookingTx exposes a persistence.BookingReader as an application.BookingTx.
type bookingTx struct {
	tx persistence.BookingReader
}

func (b bookingTx) ActiveBookings(roomID, date string) ([]application.Booking, error) {
	models, err := b.tx.ActiveBookings(roomID, date)
	if err != nil {
		return nil, err
	}
	return toApplicationBookings(models), nil
}

func (b bookingTx) GetRoom(id string) (application.Room, error) {
	room, err := b.tx.GetRoom(id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(room), nil
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: passwordHash,
		Role:         string(user.Role),
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationUser(user persistence.User) application.User {
	return application.User{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      scheduler.Role(user.Role),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:        room.ID,
		Name:      room.Name,
		Capacity:  room.Capacity,
		Location:  room.Location,
		Status:    room.Status,
		Equipment: append([]string(nil), room.Equipment...),
		CreatedAt: room.CreatedAt,
		UpdatedAt: room.UpdatedAt,
	}
}

func toApplicationRoom(room persistence.Room) application.Room {
	return application.Room{
		ID:        room.ID,
		Name:      room.Name,
		Capacity:  room.Capacity,
		Location:  room.Location,
		Status:    room.Status,
		Equipment: append([]string(nil), room.Equipment...),
		CreatedAt: room.CreatedAt,
		UpdatedAt: room.UpdatedAt,
	}
}

func toPersistenceBooking(booking application.Booking) persistence.Booking {
	return persistence.Booking{
		ID:           booking.ID,
		UserID:       booking.UserID,
		RoomID:       booking.RoomID,
		Date:         booking.Date,
		StartTime:    booking.StartTime,
		EndTime:      booking.EndTime,
		Duration:     booking.Duration,
		ClassName:    booking.ClassName,
		Subject:      booking.Subject,
		StudentCount: booking.StudentCount,
		Status:       string(booking.Status),
		Notes:        booking.Notes,
		CreatedAt:    booking.CreatedAt,
		UpdatedAt:    booking.UpdatedAt,
	}
}

func toApplicationBooking(booking persistence.Booking) application.Booking {
	return application.Booking{
		ID:           booking.ID,
		UserID:       booking.UserID,
		RoomID:       booking.RoomID,
		Date:         booking.Date,
		StartTime:    booking.StartTime,
		EndTime:      booking.EndTime,
		Duration:     booking.Duration,
		ClassName:    booking.ClassName,
		Subject:      booking.Subject,
		StudentCount: booking.StudentCount,
		Status:       scheduler.Status(booking.Status),
		Notes:        booking.Notes,
		CreatedAt:    booking.CreatedAt,
		UpdatedAt:    booking.UpdatedAt,
		Room: application.BookingRoom{
			Name:     booking.RoomName,
			Capacity: booking.RoomCapacity,
			Location: booking.RoomLocation,
		},
		Owner: application.BookingOwner{
			Name:  booking.UserName,
			Email: booking.UserEmail,
		},
	}
}

func toApplicationBookings(models []persistence.Booking) []application.Booking {
	bookings := make([]application.Booking, 0, len(models))
	for _, model := range models {
		bookings = append(bookings, toApplicationBooking(model))
	}
	return bookings
}
